package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType tags a log line with a stable machine readable event name.
	FieldEventType = "event_type"
	// FieldRunID identifies one launch of the supervised child.
	FieldRunID = "run_id"
	// FieldPID is the operating system process identifier of the child.
	FieldPID = "pid"
	// FieldPlatform is the bundle platform tag (win, mac, linux).
	FieldPlatform = "platform"
	// FieldProvisionID correlates all lines of one provisioning run.
	FieldProvisionID = "provision_id"
	// FieldStream names the child stream a line came from (stdout, stderr).
	FieldStream = "stream"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
)
