package store

// ストレージキー。各キーはJSON配列を1つ保持する。
const (
	KeyNotices            = "dongin_notices"
	KeyQnA                = "dongin_qna"
	KeyVideos             = "dongin_videos"
	KeyPayments           = "dongin_payments"
	KeyPaymentItems       = "dongin_payment_items"
	KeyClinicReservations = "dongin_clinic"
	KeyClinicSlots        = "dongin_clinic_slots"
	KeyTestResults        = "learning_test_results"
	KeyHomework           = "learning_homework"
	KeyVideoComments      = "dongin_video_comments"
	KeyVideoReplies       = "dongin_video_replies"

	// KeyUsers はユーザー一覧。Clearの対象外で、再起動後も保持される想定。
	KeyUsers = "dongin_users"
)

// SessionKeys はClearで削除されるセッションスコープのキー。
var SessionKeys = []string{
	KeyNotices,
	KeyQnA,
	KeyVideos,
	KeyPayments,
	KeyPaymentItems,
	KeyClinicReservations,
	KeyClinicSlots,
	KeyTestResults,
	KeyHomework,
	KeyVideoComments,
	KeyVideoReplies,
}
