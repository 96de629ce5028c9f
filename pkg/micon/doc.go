// Package micon implements the command link to the supervisory
// microcontroller found on Buffalo Kurobox/Linkstation/Terastation boards.
package micon

// A command is a payload followed by a checksum byte making the frame sum
// to zero mod 256. The microcontroller answers with at least four bytes,
// the first three being 0x01, the command byte and 0x00 on success,
// followed by its own checksum.
//
// Delivery is retried a bounded number of times. A reply too short to
// carry an acknowledgement suggests the byte stream is out of step, so
// the link is flooded with 0xFF to return the peer to idle before the
// next attempt. A full but wrong reply is simply retried.
