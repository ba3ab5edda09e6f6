package models

import "errors"

var (
	ErrorValidationFailed  = errors.New("validation_failed")
	ErrorOrderNotFound     = errors.New("order_not_found")
	ErrorInvalidTransition = errors.New("invalid_transition")
	ErrorRevertNeedsReason = errors.New("revert_needs_reason")
	ErrorStaffOnly         = errors.New("staff_only")

	ErrorUnverifiedChannel = errors.New("unverified_channel")
	ErrorRenderFailure     = errors.New("render_failure")
	ErrorAlreadyDispatched = errors.New("already_dispatched")

	ErrorTransientDelivery = errors.New("transient_delivery_failure")
	ErrorPermanentDelivery = errors.New("permanent_delivery_failure")

	ErrorExportTooLarge = errors.New("export_too_large")
	ErrorJobNotFound    = errors.New("job_not_found")
	ErrorJobFailed      = errors.New("job_failed")

	ErrorDbTransactionFailed   = errors.New("db_transaction_failed")
	ErrorRabbitmqPublishFailed = errors.New("rabbitmq_publish_failed")
)
