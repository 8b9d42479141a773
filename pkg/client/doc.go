// Package client is the star registry Go SDK.
//
// A star is claimed in three steps: ask the registry for an ownership
// message, sign it with the wallet's key, and submit the signature together
// with the star data before the message expires (five minutes by default).
//
//	c := client.MustNew("http://localhost:8080")
//
//	msg, err := c.RequestValidation(ctx, address)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sig := signWithWallet(msg.Message) // base64 Bitcoin signed-message signature
//
//	block, err := c.SubmitStar(ctx, client.SubmitStarRequest{
//	    Address:   address,
//	    Message:   msg.Message,
//	    Signature: sig,
//	    Star: client.Star{
//	        Dec:   "68° 52' 56.9",
//	        RA:    "16h 29m 1.0s",
//	        Story: "Found star using https://www.google.com/sky/",
//	    },
//	})
//
// Rejected submissions are returned as *APIError; its Reason field tells an
// expired message apart from a bad signature:
//
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.Reason == "expired" {
//	    // request a new message and sign again
//	}
//
// # Reading the ledger
//
//	stars, err := c.StarsByOwner(ctx, address)
//	block, err := c.BlockByHash(ctx, hash)
//	report, err := c.Validate(ctx) // report.Valid, report.Errors
package client
