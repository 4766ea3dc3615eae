// Package pairing provides the session key provider for encrypted control
// connections.
//
// Real AirPlay receivers derive control-channel keys from HAP pair-verify.
// This package replaces that exchange with a small Noise NX handshake built
// on flynn/noise so that the encrypted mode can be run end to end:
//
//	controller                       accessory
//	----------                       ---------
//	msg1 := h.Start()        ->
//	                                 msg2 := h.Respond(msg1)
//	h.Finish(msg2)           <-
//
// The accessory authenticates with its static X25519 [Identity]; controllers
// may pin its public key. Message 2 carries a fresh 32-byte secret that both
// sides expand with crypto.DeriveSessionKeys, the accessory in the Accessory
// role and the controller in the Controller role, so each side's encrypt key
// is the other's decrypt key.
//
// A completed [Handshake] satisfies interfaces.IKeyProvider.
package pairing
