package model

// Branding is the tenant-scoped presentation config served under the
// tenants resource. All fields except the name may be absent.
type Branding struct {
	BrandName    string `json:"brand_name"`
	LogoURL      string `json:"logo_url,omitempty"`
	PrimaryColor string `json:"primary_color,omitempty"`
	SupportEmail string `json:"support_email,omitempty"`
	TenantID     string `json:"tenant_id,omitempty"`
	Environment  string `json:"environment"`
}
