// Package discovery implements mDNS/DNS-SD discovery of Woopsa servers.
//
// Servers advertise the service type _woopsa._tcp. The instance name is
// the user-friendly server name. TXT records:
//
//   - path: URL prefix of the Woopsa verbs (e.g. "/woopsa")
//   - ver: protocol version, "major.minor"
//   - name: optional root object name
//
// Browsing aggregates the addresses a server is seen on across interfaces
// and drops servers announcing an incompatible protocol version.
package discovery
