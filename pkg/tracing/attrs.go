package tracing

// Attribute keys emitted on inventory spans. These names are a stable
// contract with downstream dashboards and alerts; do not rename.
const (
	AttrHostID             = "host.id"
	AttrHostOrgID          = "host.org_id"
	AttrHostReporter       = "host.reporter"
	AttrHostAccount        = "host.account"
	AttrHostDisplayName    = "host.display_name"
	AttrHostCanonicalFacts = "host.canonical_facts"

	AttrOperationName   = "operation.name"
	AttrOperationResult = "operation.result"
	AttrOperationType   = "operation.type"

	AttrMessagingSystem    = "messaging.system"
	AttrMessagingOperation = "messaging.operation"
	AttrMessagingTopic     = "messaging.topic"

	AttrBatchSize         = "batch.size"
	AttrBatchSuccessCount = "batch.success_count"
	AttrBatchFailureCount = "batch.failure_count"
	AttrBatchDurationMS   = "batch.duration_ms"

	AttrIdentityAuthType = "identity.auth_type"
	AttrIdentityType     = "identity.type"
)

// operation.result values.
const (
	ResultCreated = "created"
	ResultUpdated = "updated"
	ResultFailed  = "failed"
)

// operation.type values.
const (
	OperationTypeBatch  = "batch"
	OperationTypeSingle = "single"
)

// MessagingSystemKafka is the only messaging.system value the inventory emits.
const MessagingSystemKafka = "kafka"

// identity.type values.
const (
	IdentityTypeUser   = "User"
	IdentityTypeSystem = "System"
)

// Span names consumers key dashboards on; preserved verbatim.
const (
	SpanHostMessageHandling   = "inventory.mq.host_message_handling"
	SpanIngressHostProcessing = "inventory.ingress_host_processing"
	SpanSystemProfileUpdate   = "inventory.system_profile_update"
	SpanWriteEventMessage     = "inventory.write_event_message"
	SpanDBCommit              = "db_commit"
)
