package apic

import "strings"

// Path segments of the API Connect platform REST API.
const (
	PathToken         = "token"
	PathOrgs          = "orgs"
	PathCatalogs      = "catalogs"
	PathProducts      = "products"
	PathAPIs          = "apis"
	PathApps          = "apps"
	PathCredentials   = "credentials"
	PathSubscriptions = "subscriptions"
	PathMembers       = "members"
	PathConsumerOrgs  = "consumer-orgs"
	PathDocument      = "document"
)

// JoinURL joins base and the given path segments with single slashes.
func JoinURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(strings.Trim(s, "/"))
	}
	return b.String()
}
