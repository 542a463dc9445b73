// Package bridge implements a sensor device backed by an external bridge
// process that streams body frames as newline-delimited JSON over TCP or a
// unix socket.
//
// Vendor sensor SDKs are not available to Go on every platform, so a small
// companion process talks to the hardware and forwards each body frame as
// one JSON line. The device redials when the bridge goes away and reports
// availability from the connection state.
package bridge
