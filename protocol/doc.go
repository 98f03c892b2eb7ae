package protocol

// This package implements parsing and serialising of the binary wire
// format that Parley clients and servers use to talk to each other.
//
// The protocol aims to be
//
// - trivial to implement
// - cheap to parse
// - fixed in shape: both ends share the same tag tables
//
// - `Command` - A client instruction to a Parley server.
// - `Notification` - A server reply to a client. Exactly one notification
//                    is written for every command received.
//
// === Integers
//
// Unsigned 16 and 32 bit integers are big-endian and always occupy
// exactly 2 or 4 bytes.
//
// === Strings
//
// A length-prefixed string is a 4 byte big-endian length L followed by
// exactly L bytes of UTF-8. Decoding is lossy: invalid sequences are
// replaced with U+FFFD, never rejected.
//
// === Command frames (client -> server)
//
//   ```
//   [1 byte tag][4 byte length][length bytes of payload string]
//   ```
//
// The frame is written in a single contiguous write. Tags:
//
// - `0` Register       - payload `username;nickname;password`
// - `1` Connect        - payload `username;password`
// - `2` RequestContact - payload is the bare username
//
// Payload fields are joined with the ASCII `;` delimiter and split
// positionally on decode. Fewer fields than expected fail with
// ErrInvalidPayload; extra fields are silently ignored. A `;` inside a
// field is neither escaped nor rejected and will corrupt positional
// decoding.
//
// === Notification frames (server -> client)
//
//   ```
//   [1 byte tag]  (+ for payload-bearing tags:)  [4 byte length][length bytes]
//   ```
//
// Whether a tag carries a payload is a fixed property of the tag, not
// of the frame: the reader learns it from the shared tag table, never
// from the wire. See Notification.HasPayload.
//
// Tag table (stable, shared verbatim between encode and decode):
//
// - `0` UnknownCommand
// - `1` InvalidPayload
// - `2` UserRegistred
// - `3` UserAlreadyExist
// - `4` UserConnected          - payload: user id (4 bytes) + `username;nickname`
// - `5` UserIsAlreadyConnected
// - `6` UserNotFound
// - `7` UserPasswordIncorrect
// - `8` ReceiveContactInfo     - payload: user id (4 bytes) + raw nickname bytes
//
// The UserConnected and ReceiveContactInfo payloads carry no inner
// length markers: the user id has fixed width and the trailing string
// runs to the end of the outer frame.
