// Package discovery advertises and finds apsta nodes over mDNS.
//
// While a node runs its access point, an Announcer registers the
// "_apsta._tcp" service so that a setup client joined to that network can
// find the status server without knowing its address. The TXT records carry
// the access point SSID, the role and the build version.
//
// A Scanner browses for the same service type:
//
//	scanner := discovery.NewScanner()
//	devices, err := scanner.Scan(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, d := range devices {
//	    fmt.Println(d.Instance, d.BaseURL())
//	}
//
// The Announcer is a wifi.Observer. Subscribe it to the manager and it
// follows the access point role on its own.
package discovery
