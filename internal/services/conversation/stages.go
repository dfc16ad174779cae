package conversation

// Stage tags where an actor's multi-turn conversation currently stands.
type Stage string

const (
	StageAwaitRegister     Stage = "awaitRegister"
	StageAwaitReferral     Stage = "awaitReferral"
	StageEnterReferralCode Stage = "enterReferralCode"
	StageAddRecipients     Stage = "addRecipients"
	StageManualRecipients  Stage = "manualRecipients"
	StageUploadRecipients  Stage = "uploadRecipients"
	StageRemoveRecipient   Stage = "removeRecipient"
	StageBroadcastMessage  Stage = "broadcastMessage"
	StageTopupAmount       Stage = "topupAmount"
	StageTopupPhone        Stage = "topupPhone"
	StageTemplates         Stage = "templates"
	StageTemplateAdd       Stage = "templateAdd"
	StageTemplateUse       Stage = "templateUse"
	StageTemplateDelete    Stage = "templateDelete"
	StageDeleteConfirm     Stage = "deleteConfirm"
)

// Session is the per-actor scratch record. Fields other than Stage are only
// meaningful to the stage that wrote them.
type Session struct {
	Stage       Stage  `json:"stage"`
	PendingName string `json:"pending_name,omitempty"`
	Amount      string `json:"amount,omitempty"`
}

// stageDef declares how a stage takes input. A stage that claims digits
// receives "1".."11" itself; otherwise those digits open the main menu item
// and the stage is abandoned.
type stageDef struct {
	claimsDigits bool
	registration bool
	handle       func(m *Machine, t *turn) error
}

func stageTable() map[Stage]stageDef {
	return map[Stage]stageDef{
		StageAwaitRegister:     {claimsDigits: true, registration: true, handle: (*Machine).handleUsername},
		StageAwaitReferral:     {claimsDigits: true, registration: true, handle: (*Machine).handleReferralChoice},
		StageEnterReferralCode: {claimsDigits: true, registration: true, handle: (*Machine).handleReferralCode},

		StageAddRecipients:    {claimsDigits: true, handle: (*Machine).handleAddRecipientsChoice},
		StageManualRecipients: {claimsDigits: false, handle: (*Machine).handleManualRecipients},
		StageUploadRecipients: {claimsDigits: true, handle: (*Machine).handleUploadRecipients},
		StageRemoveRecipient:  {claimsDigits: true, handle: (*Machine).handleRemoveRecipient},

		StageBroadcastMessage: {claimsDigits: false, handle: (*Machine).handleBroadcastMessage},

		StageTopupAmount: {claimsDigits: true, handle: (*Machine).handleTopupAmount},
		StageTopupPhone:  {claimsDigits: true, handle: (*Machine).handleTopupPhone},

		StageTemplates:      {claimsDigits: true, handle: (*Machine).handleTemplatesChoice},
		StageTemplateAdd:    {claimsDigits: false, handle: (*Machine).handleTemplateAdd},
		StageTemplateUse:    {claimsDigits: true, handle: (*Machine).handleTemplateUse},
		StageTemplateDelete: {claimsDigits: true, handle: (*Machine).handleTemplateDelete},

		StageDeleteConfirm: {claimsDigits: true, handle: (*Machine).handleDeleteConfirm},
	}
}
