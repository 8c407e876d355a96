package flows

// Deps groups flow dependency sets. The root Orchestrator builds this once and delegates
// each operation to the matching flow implementation.
type Deps struct {
	Refresh RefreshDeps
	Login   LoginDeps
	Logout  LogoutDeps
	Restore RestoreDeps
}
