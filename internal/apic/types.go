package apic

// Results is the envelope of all collection responses.
type Results[T any] struct {
	Results []T `json:"results"`
}

// AccessToken is the response of the token endpoint.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	// Lifetime of the token in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

type Org struct {
	OrgType    string `json:"org_type"`
	APIVersion string `json:"api_version"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	State      string `json:"state"`
	OwnerURL   string `json:"owner_url"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	OrgURL     string `json:"org_url"`
	CatalogURL string `json:"catalog_url"`
	URL        string `json:"url"`
}

type Catalog struct {
	Type       string `json:"type"`
	APIVersion string `json:"api_version"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	OwnerURL   string `json:"owner_url"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	OrgURL     string `json:"org_url"`
	URL        string `json:"url"`
}

type User struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	Email            string `json:"email"`
	State            string `json:"state"`
	Title            string `json:"title"`
	OrgURL           string `json:"org_url"`
	Username         string `json:"username"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	IdentityProvider string `json:"identity_provider"`
	UserRegistryURL  string `json:"user_registry_url"`
}

// Member is the membership of a user in a provider or consumer organization.
type Member struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Title     string   `json:"title"`
	State     string   `json:"state"`
	Scope     string   `json:"scope"`
	User      User     `json:"user"`
	RoleURLs  []string `json:"role_urls"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	OrgURL    string   `json:"org_url"`
	URL       string   `json:"url"`
}

type ProductPlan struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	APIs  []API  `json:"apis"`
}

type Product struct {
	Type               string        `json:"type"`
	APIVersion         string        `json:"api_version"`
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Version            string        `json:"version"`
	Title              string        `json:"title"`
	State              string        `json:"state"`
	Scope              string        `json:"scope"`
	GatewayTypes       []string      `json:"gateway_types"`
	GatewayServiceURLs []string      `json:"gateway_service_urls"`
	APIURLs            []string      `json:"api_urls"`
	Plans              []ProductPlan `json:"plans"`
	OrgURL             string        `json:"org_url"`
	CatalogURL         string        `json:"catalog_url"`
	URL                string        `json:"url"`
}

type API struct {
	APIType               string   `json:"api_type"`
	APIVersion            string   `json:"api_version"`
	ID                    string   `json:"id"`
	Name                  string   `json:"name"`
	Version               string   `json:"version"`
	Title                 string   `json:"title"`
	State                 string   `json:"state"`
	Scope                 string   `json:"scope"`
	GatewayType           string   `json:"gateway_type"`
	OAIVersion            string   `json:"oai_version"`
	DocumentSpecification string   `json:"document_specification"`
	BasePaths             []string `json:"base_paths"`
	Enforced              bool     `json:"enforced"`
	CreatedAt             string   `json:"created_at"`
	UpdatedAt             string   `json:"updated_at"`
	OrgURL                string   `json:"org_url"`
	CatalogURL            string   `json:"catalog_url"`
	URL                   string   `json:"url"`
}

type Application struct {
	Type              string   `json:"type"`
	APIVersion        string   `json:"api_version"`
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Title             string   `json:"title"`
	Summary           string   `json:"summary"`
	State             string   `json:"state"`
	LifecycleState    string   `json:"lifecycle_state"`
	AppCredentialURLs []string `json:"app_credential_urls"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
	OrgURL            string   `json:"org_url"`
	CatalogURL        string   `json:"catalog_url"`
	ConsumerOrgURL    string   `json:"consumer_org_url"`
	URL               string   `json:"url"`
}

// Credential is a client id/secret pair issued to an application.
// The secret fields are decoded but never copied into entities.
type Credential struct {
	Type               string `json:"type"`
	APIVersion         string `json:"api_version"`
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Title              string `json:"title"`
	Summary            string `json:"summary"`
	ClientID           string `json:"client_id"`
	ClientSecretHashed string `json:"client_secret_hashed"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
	OrgURL             string `json:"org_url"`
	CatalogURL         string `json:"catalog_url"`
	ConsumerOrgURL     string `json:"consumer_org_url"`
	AppURL             string `json:"app_url"`
	URL                string `json:"url"`
}

type Subscription struct {
	Type           string   `json:"type"`
	APIVersion     string   `json:"api_version"`
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Title          string   `json:"title"`
	State          string   `json:"state"`
	ProductURL     string   `json:"product_url"`
	Plan           string   `json:"plan"`
	PlanTitle      string   `json:"plan_title"`
	TaskURLs       []string `json:"task_urls"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
	OrgURL         string   `json:"org_url"`
	CatalogURL     string   `json:"catalog_url"`
	ConsumerOrgURL string   `json:"consumer_org_url"`
	AppURL         string   `json:"app_url"`
	URL            string   `json:"url"`
}

// ConsumerOrg is an organization of API consumers within a catalog.
type ConsumerOrg struct {
	Type       string `json:"type"`
	APIVersion string `json:"api_version"`
	ID         string `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	State      string `json:"state"`
	OwnerURL   string `json:"owner_url"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	OrgURL     string `json:"org_url"`
	CatalogURL string `json:"catalog_url"`
	URL        string `json:"url"`
}
