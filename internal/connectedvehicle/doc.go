// Package connectedvehicle is a small client for the Volvo Cars Connected Vehicle
// and Energy APIs. Requests are authorized with an access token from an
// oauth2.TokenSource plus the application's VCC API key.
package connectedvehicle
