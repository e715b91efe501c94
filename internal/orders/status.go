package orders

type Status string

const (
	StatusPending           Status = "pending"
	StatusConfirmed         Status = "confirmed"
	StatusPacked            Status = "packed"
	StatusShipping          Status = "shipping"
	StatusSuccess           Status = "success"
	StatusFailed            Status = "failed"
	StatusCustomerCancelled Status = "customer_cancelled"
	StatusCarrierCancelled  Status = "carrier_cancelled"
	StatusRefunding         Status = "refunding"
	StatusRefunded          Status = "refunded"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:           {StatusConfirmed: true, StatusCustomerCancelled: true, StatusCarrierCancelled: true},
	StatusConfirmed:         {StatusPacked: true, StatusCustomerCancelled: true, StatusCarrierCancelled: true},
	StatusPacked:            {StatusShipping: true},
	StatusShipping:          {StatusSuccess: true, StatusFailed: true},
	StatusSuccess:           {StatusRefunding: true},
	StatusRefunding:         {StatusRefunded: true},
	StatusFailed:            {},
	StatusCustomerCancelled: {},
	StatusCarrierCancelled:  {},
	StatusRefunded:          {},
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ValidPaymentStatus(p PaymentStatus) bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}
