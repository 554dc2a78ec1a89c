package edbg

// DiscoveryQueryID selects what a Discovery handler query asks for, ahead
// of opening a HouseKeeping session (SPEC_FULL.md §4.1).
type DiscoveryQueryID byte

const (
	// DiscoveryQueryCommandHandlers lists the sub-protocol handler IDs the
	// attached tool supports.
	DiscoveryQueryCommandHandlers DiscoveryQueryID = 0x00
	// DiscoveryQueryBoardName reads back the tool's board/product name.
	DiscoveryQueryBoardName DiscoveryQueryID = 0x01
)

// DiscoveryQuery asks the Discovery handler for id, returning its raw
// response payload (interpretation is query-specific: a byte set of
// supported handler IDs for DiscoveryQueryCommandHandlers, an ASCII string
// for DiscoveryQueryBoardName).
func (p *SubProtocol) DiscoveryQuery(id DiscoveryQueryID) ([]byte, error) {
	resp, err := p.Exec(HandlerDiscovery, []byte{byte(id)})
	if err != nil {
		return nil, err
	}
	if err := requireOK(resp, "Discovery query"); err != nil {
		return nil, err
	}
	return resp.Data(), nil
}

// SupportsHandler reports whether handler is listed among the supported
// command handlers, per a DiscoveryQueryCommandHandlers response whose
// data is a flat list of supported handler-id bytes.
func (p *SubProtocol) SupportsHandler(handler ProtocolHandlerID) (bool, error) {
	data, err := p.DiscoveryQuery(DiscoveryQueryCommandHandlers)
	if err != nil {
		return false, err
	}
	for _, b := range data {
		if ProtocolHandlerID(b) == handler {
			return true, nil
		}
	}
	return false, nil
}
