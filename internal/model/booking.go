package model

// PaymentCategory は教材の種別。
type PaymentCategory string

const (
	PaymentCategoryTextbook PaymentCategory = "textbook"
	PaymentCategoryWorkbook PaymentCategory = "workbook"
	PaymentCategoryTest     PaymentCategory = "test"
)

// PaymentItem は購入可能な教材のカタログ行。学校・学年でスコープされる。
type PaymentItem struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       int             `json:"price"`
	School      string          `json:"school"`
	Grade       int             `json:"grade"`
	Category    PaymentCategory `json:"category"`
	IsRequired  bool            `json:"isRequired"`
}

// PaymentStatus は決済リクエストの状態。
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentLineItem はリクエスト作成時点のカタログ行のスナップショット。
// カタログの後日の価格変更は既存リクエストに影響しない。
type PaymentLineItem struct {
	ItemID   string          `json:"itemId"`
	Title    string          `json:"title"`
	Category PaymentCategory `json:"category"`
	Price    int             `json:"price"`
}

// PaymentRequest は受講生の購入記録。
type PaymentRequest struct {
	ID            string            `json:"id"`
	StudentID     string            `json:"studentId"`
	StudentName   string            `json:"studentName"`
	School        string            `json:"school"`
	Grade         int               `json:"grade"`
	Items         []PaymentLineItem `json:"items"`
	TotalAmount   int               `json:"totalAmount"`
	Status        PaymentStatus     `json:"status"`
	RequestDate   string            `json:"requestDate"`
	PaidDate      string            `json:"paidDate,omitempty"`
	PaymentMethod string            `json:"paymentMethod,omitempty"`
	Memo          string            `json:"memo,omitempty"`
}

// ClinicSlot はクリニックの予約枠。Available ↔ Reserved の二値。
type ClinicSlot struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	IsAvailable bool   `json:"isAvailable"`
	ReservedBy  string `json:"reservedBy,omitempty"`
	Description string `json:"description,omitempty"`
}

// ReservationStatus はクリニック予約の状態。
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

// Terminal は終端状態（completed / cancelled）かどうかを返す。
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCompleted || s == ReservationCancelled
}

// ReservationType は相談形式。
type ReservationType string

const (
	ReservationIndividual ReservationType = "individual"
	ReservationGroup      ReservationType = "group"
)

// ClinicReservation はクリニック予約を表す。
type ClinicReservation struct {
	ID          string            `json:"id"`
	StudentID   string            `json:"studentId"`
	StudentName string            `json:"studentName,omitempty"`
	SlotID      string            `json:"slotId,omitempty"`
	Date        string            `json:"date"`
	Time        string            `json:"time"`
	Type        ReservationType   `json:"type,omitempty"`
	Subject     string            `json:"subject"`
	Description string            `json:"description"`
	Status      ReservationStatus `json:"status"`
	CreatedAt   string            `json:"createdAt"`
	ConfirmedAt string            `json:"confirmedAt,omitempty"`
	Memo        string            `json:"memo,omitempty"`
}
