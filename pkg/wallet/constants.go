package wallet

const (
	operationSpin    = "spin"
	operationReset   = "reset"
	operationBalance = "balance"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorSubjectBalance = "balance"
	errorSubjectDebit   = "debit"
	errorSubjectCredit  = "credit"
	errorSubjectRefund  = "refund"
	errorCodeGuard      = "guard"
	errorCodeStore      = "store"
	errorCodeUnsettled  = "unsettled"

	defaultMaxAttempts = 3
)
