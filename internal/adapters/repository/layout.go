package repository

// Fixed sections inside the configured workbooks.
const (
	SectionNewbie      = "新生名單彙總表[不輸出]"
	SectionCoordinates = "學生住址座標[不輸出]"
	SectionGraduates   = "榜單彙總表[不輸出]"
	SectionGSATScores  = "歷年學測成績彙總表[不輸出]"
	SectionSTScores    = "歷年分科成績彙總表[不輸出]"
	SectionGSATBands   = "學測全國五標[不輸出]"
	SectionSTBands     = "分科全國五標[不輸出]"
	SectionIDMapping   = "身分證准考證對應表[不輸出]"
)

// Fields of the coordinates section.
const (
	coordKey       = "身分證字號"
	coordAddress   = "地址"
	coordLatitude  = "緯度"
	coordLongitude = "經度"
)
