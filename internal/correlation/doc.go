// Package correlation defines the contract between alignment workers and the
// numeric code that scores tile offsets.
//
// A [Backend] computes a correlation matrix for a tile and a neighbor whose
// frequency-domain payloads are device-resident, then extracts the top-K
// peaks. Workers call a backend repeatedly with the same matrix buffer, so
// implementations must not assume the buffer is fresh.
//
// [TopPeaks] implements peak selection on a host matrix: it returns the
// strongest distinct local maxima, never more than k and never padded.
//
// [Reference] is a host implementation for drivers that implement
// [device.HostView]. It is a deterministic stand-in used with the device
// simulator; it scores normalised cross-power agreement rather than running an
// inverse transform.
package correlation
