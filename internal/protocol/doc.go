// Package protocol defines the JSON messages exchanged with the
// notification service over a WebSocket.
//
// Every frame is a UTF-8 JSON object whose "type" field selects the
// variant. Inbound frames decode into an InboundMessage; outbound control
// messages encode from an OutgoingMessage. A frame whose "type" is not
// recognised decodes into Unknown instead of failing, so newer server
// message shapes never break an older client.
package protocol
