package models

// VoidRequest representa el request HTTP para anular documentos
type VoidRequest struct {
	AccessToken string   `json:"access_token"`
	TenantID    string   `json:"tenant_id"`
	VoidType    string   `json:"void_type"`
	Identifiers []string `json:"identifiers"`
	DryRun      bool     `json:"dry_run,omitempty"`

	RunID string `json:"run_id,omitempty"`
}

// GetVoidType implementa la interfaz del validator
func (r *VoidRequest) GetVoidType() string {
	return r.VoidType
}

// GetIdentifiers implementa la interfaz del validator
func (r *VoidRequest) GetIdentifiers() []string {
	return r.Identifiers
}
