package common

var (
	paydayPrefix      = []byte{0x01}
	escapeHatchPrefix = []byte{0x02}
)

// PaydayTransferDetails returns transfer details for the salary payment
// identified by the payslip ID.
func PaydayTransferDetails(payslipID []byte) []byte {
	return append(append([]byte{}, paydayPrefix...), payslipID...)
}

// EscapeHatchTransferDetails returns transfer details for the treasury sweep
// made by the owner.
func EscapeHatchTransferDetails(owner []byte) []byte {
	return append(append([]byte{}, escapeHatchPrefix...), owner...)
}

// IsPaydayTransfer checks whether details were produced by
// PaydayTransferDetails.
func IsPaydayTransfer(details []byte) bool {
	return len(details) > 0 && details[0] == paydayPrefix[0]
}

// IsEscapeHatchTransfer checks whether details were produced by
// EscapeHatchTransferDetails.
func IsEscapeHatchTransfer(details []byte) bool {
	return len(details) > 0 && details[0] == escapeHatchPrefix[0]
}
