// Package sim provides an in-memory radio stack.
//
// The simulated stack behaves like a single-radio device: one role at a
// time, notifications delivered asynchronously, and association results
// decided by a Scenario:
//
//	name: flaky-uplink
//	networks:
//	  - ssid: uplink
//	    password: hunter22
//	failures: [NO_AP_FOUND, NO_AP_FOUND]
//	associate_delay: 200ms
//	address_delay: 50ms
//	address: 10.0.0.23
//	peers:
//	  - mac: aa:bb:cc:dd:ee:ff
//	    join: 1s
//	    leave: 3s
//
// It backs both the unit tests and the apsta CLI when no hardware driver is
// available.
package sim
