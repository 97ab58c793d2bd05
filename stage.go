package auth

// Stage is a step of the issuance or verification pipeline.
type Stage string

const (
	StageReceived            Stage = "received"
	StageCredentialsVerified Stage = "credentials_verified"
	StageClaimsBuilt         Stage = "claims_built"
	StagePayloadExtended     Stage = "payload_extended"
	StageTokenEncoded        Stage = "token_encoded"
	StageResponded           Stage = "responded"

	StageDecoded   Stage = "decoded"
	StageValidated Stage = "validated"
	StageAccepted  Stage = "accepted"
	StageRejected  Stage = "rejected"
)

// pipeline tracks the last stage reached by a single request. It is request
// local and never shared.
type pipeline struct {
	op     string
	stage  Stage
	logger Logger
}

func newPipeline(op string, logger Logger) *pipeline {
	return &pipeline{op: op, stage: StageReceived, logger: logger}
}

func (p *pipeline) advance(stage Stage) {
	p.stage = stage
	p.logger.Debug("pipeline stage", "op", p.op, "stage", stage)
}

// fail annotates err with the stage reached so far.
func (p *pipeline) fail(err error) *Error {
	richErr := AsError(err)
	if StageOf(richErr) == "" {
		richErr = WithStage(richErr, p.stage)
	}
	return richErr
}
