package infra

// ExternalInfraManager implements InfraManager for an agent that is managed
// outside the test run. Tokens are signed locally with the shared secret.
type ExternalInfraManager struct {
	url    string
	signer *Signer
}

func NewExternalInfraManager(url, secret string) *ExternalInfraManager {
	return &ExternalInfraManager{url: url, signer: NewSigner(secret)}
}

func (e *ExternalInfraManager) StartAgent(_ AgentConfig) (string, error) {
	return e.url, nil
}

func (e *ExternalInfraManager) StopAgent() error { return nil }

func (e *ExternalInfraManager) GenerateToken(subject string) (string, error) {
	return e.signer.GenerateToken(subject)
}
