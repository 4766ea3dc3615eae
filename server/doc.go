// Package server runs the AirPlay control channel.
//
// A Server accepts TCP connections on one goroutine and hands them to a
// single poll goroutine that owns every Session. Each pass gives every
// session one non-blocking read turn; complete requests are parsed with the
// rtsp package and dispatched to a Handler. When a full pass makes no
// progress the poller sleeps for the configured poll interval.
//
// Requests are buffered until the header terminator and the declared body
// have arrived, so a request may be split across any number of reads or
// frames. Several requests may also arrive in one read.
//
// DefaultRoutes serves OPTIONS, SETUP, RECORD, FLUSH, TEARDOWN,
// GET_PARAMETER, SET_PARAMETER, GET /info and POST /pair-verify. A
// successful pair-verify switches the session to encrypted framing; any
// framing error then closes it.
//
//	cfg := config.Default()
//	id, _ := pairing.LoadIdentity(cfg.Pairing.IdentityKey)
//	srv := server.New(cfg, server.DefaultRoutes(server.DeviceInfo{Name: "kitchen"}, id))
//	err := srv.ListenAndServe(ctx)
package server
