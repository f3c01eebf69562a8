// Package purchase defines the domain types shared by the purchasekit
// packages and the closed error taxonomy every boundary maps into.
//
// The central types are Transaction (an ephemeral, platform-issued purchase
// event carrying a signed receipt) and Purchase (the persisted local record
// with explicit verification and sync flags). Both purchase platforms are
// represented by the Platform tag; platform-specific behaviour lives in the
// receipt and repository packages, not here.
//
// # Error taxonomy
//
// Every failure crossing a package boundary is an *Error carrying a stable
// Code, a human-readable Message, and an unambiguous Retryable flag. Raw
// errors and recovered panic values are decoded into the taxonomy with
// FromAny, which never returns nil:
//
//	if err := store.RecordPurchase(ctx, p); err != nil {
//	    perr, _ := purchase.AsError(err)
//	    if perr.Retryable {
//	        // schedule a retry
//	    }
//	}
package purchase
