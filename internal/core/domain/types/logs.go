package types

const (
	ActionServiceStarted   = "service_started"
	ActionServiceFailed    = "service_failed"
	ActionGracefulShutdown = "graceful_shutdown"

	// Stage machine actions
	ActionStageAdvanced       = "stage_advanced"
	ActionStageReverted       = "stage_reverted"
	ActionTransitionRejected  = "transition_rejected"
	ActionTransitionPublished = "transition_published"

	// Dispatch actions
	ActionDispatchStarted     = "dispatch_started"
	ActionDispatchCompleted   = "dispatch_completed"
	ActionDispatchSkipped     = "dispatch_skipped"
	ActionRenderFailed        = "render_failed"
	ActionNotificationCreated = "notification_created"

	// Delivery actions
	ActionDeliveryAttempt     = "delivery_attempt"
	ActionDeliverySent        = "delivery_sent"
	ActionDeliveryConfirmed   = "delivery_confirmed"
	ActionDeliveryRetrying    = "delivery_retrying"
	ActionDeliveryFailedFinal = "delivery_failed_final"

	// Audit and export actions
	ActionAuditAppended    = "audit_appended"
	ActionAuditUpdated     = "audit_updated"
	ActionExportRequested  = "export_requested"
	ActionExportStarted    = "export_started"
	ActionExportCompleted  = "export_completed"
	ActionExportFailed     = "export_failed"
	ActionExportRejected   = "export_rejected"
	ActionArtifactExpired  = "artifact_expired"
	ActionJobStatusQueried = "job_status_queried"

	// RabbitMQ-related actions
	ActionRabbitMQConnecting      = "rabbitmq_connecting"
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitMQDisconnected    = "rabbitmq_disconnected"
	ActionRabbitMQReconnecting    = "rabbitmq_reconnecting"
	ActionRabbitMQReconnected     = "rabbitmq_reconnected"
	ActionRabbitMQReconnectFailed = "rabbitmq_reconnect_failed"
	ActionRabbitMQSetup           = "rabbitmq_setup"
	ActionRabbitMQSetupComplete   = "rabbitmq_setup_complete"
	ActionRabbitMQSetupFailed     = "rabbitmq_setup_failed"
	ActionRabbitMQConsumeStarted  = "rabbitmq_consume_started"
	ActionRabbitMQConsumeFailed   = "rabbitmq_consume_failed"
	ActionRabbitMQConnectFailed   = "rabbitmq_connect_failed"
	ActionRabbitMQAckFailed       = "rabbitmq_ack_failed"
	ActionRabbitMQNackFailed      = "rabbitmq_nack_failed"
	ActionRabbitmqPublishFailed   = "rabbitmq_publish_failed"

	// Database and response actions
	ActionDBConnected             = "db_connected"
	ActionDBConnectFailed         = "db_connect_failed"
	ActionDBQueryFailed           = "db_query_failed"
	ActionDBTransactionFailed     = "db_transaction_failed"
	ActionResponseFailed          = "response_failed"
	ActionRequestReceived         = "request_received"
	ActionValidationFailed        = "validation_failed"
	ActionMessageProcessingFailed = "message_processing_failed"
)
