// Package packet implements the length-framed wire format shared by every
// stcp connection.
//
// A packet is a header followed by the payload:
//
//	[tag:2][extension:N][payload length:u32][header length:u16][payload]
//
// All integers are big endian. The tag names what produced the packet and
// decides N, the size of the extension block that follows it. The plain
// codec only knows the zero tag with an empty extension; the secure codec
// carries the cipher identity in the tag and the cipher parameters in the
// extension block.
package packet
