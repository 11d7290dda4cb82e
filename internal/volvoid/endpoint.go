package volvoid

import (
	"golang.org/x/oauth2"
)

// Endpoint defines the Volvo ID OAuth2 endpoints.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://volvoid.eu.volvocars.com/as/authorization.oauth2",
	TokenURL:  "https://volvoid.eu.volvocars.com/as/token.oauth2",
	AuthStyle: oauth2.AuthStyleInParams,
}

// DefaultScopes covers the Connected Vehicle API v2 and Energy API v2 endpoints in use.
var DefaultScopes = []string{
	"openid",
	"conve:vehicle_relation",
	"conve:battery_charge_level",
	"conve:odometer_status",
	"conve:lock_status",
	"conve:doors_status",
	"conve:windows_status",
	"energy:state:read",
	"energy:capability:read",
}
