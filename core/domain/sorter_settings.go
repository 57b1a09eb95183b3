package domain

// Move modes.
const (
	MoveModeAuto    = "AUTO"
	MoveModeConfirm = "CONFIRM"
)

// AnalysisModule selects which pipeline stages run for incoming messages.
type AnalysisModule string

const (
	ModuleFull    AnalysisModule = "full"    // keyword filters + LLM classification
	ModuleKeyword AnalysisModule = "keyword" // keyword filters only
	ModuleLLM     AnalysisModule = "llm"     // LLM classification only
	ModuleOff     AnalysisModule = "off"     // record nothing, scan disabled
)

// UsesKeywordFilters reports whether keyword rules run for this module.
func (m AnalysisModule) UsesKeywordFilters() bool {
	return m == ModuleFull || m == ModuleKeyword
}

// UsesLLM reports whether embedding + LLM classification runs for this module.
func (m AnalysisModule) UsesLLM() bool {
	return m == ModuleFull || m == ModuleLLM
}

// ParseAnalysisModule maps a stored value to a module, defaulting to full.
func ParseAnalysisModule(value string) AnalysisModule {
	switch AnalysisModule(value) {
	case ModuleKeyword, ModuleLLM, ModuleOff:
		return AnalysisModule(value)
	default:
		return ModuleFull
	}
}

// MailboxTags groups the flag names the sorter writes to the mailbox.
type MailboxTags struct {
	Protected string // messages carrying this flag are never touched
	Processed string // marker added once a message has been handled
	AIPrefix  string // namespace prefix for AI-generated tags
}
