package model

// Field names shared by several layers.
const (
	FieldAdmissionYear = "入學年分"
	FieldListYear      = "榜單年分"
	FieldExamYear      = "年度"

	FieldNationalID  = "身分證字號"
	FieldUnifiedID   = "身分證統一編號"
	FieldEncryptedID = "身分證號（加密）"
	FieldStudentNo   = "學號"

	FieldRegistrationNo = "報名序號"
	FieldMappingYear    = "考試年份"

	FieldAddress   = "地址"
	FieldLatitude  = "住址緯度"
	FieldLongitude = "住址經度"

	FieldClass    = "年班"
	FieldDataYear = "資料年份"
	FieldSemester = "學期"
)

// StudentFilterFields are offered as filters on the newbie dashboard.
var StudentFilterFields = []string{
	"性別", "入學身分", "學籍狀態", "就讀類別", "原就讀學校", "戶籍縣市",
	"通訊縣市", "父親教育程度", "母親教育程度", "家庭年收入", "特殊身分",
}

// GraduateFilterFields are offered as filters on the graduate dashboard.
var GraduateFilterFields = []string{
	"性別", "學制", "升學狀況", "錄取學校", "錄取系所", "入學管道", "特殊身分",
}
