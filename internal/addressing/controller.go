package addressing

import "moatbus/internal/message"

// sender is the subset of *bus.Handler a Controller needs, narrowed to
// ease testing without a real wire simulator.
type sender interface {
	Send(msg *message.Message)
}

// Controller wires an Assigner to a bus.Handler: it answers announce
// messages with proposals and frees the address named in a release
// message; accept messages are taken without changing the table. The
// handlers are registered the same way any other addressing.Registry
// consumer would be.
type Controller struct {
	*Registry
	h        sender
	assigner *Assigner
	self     uint8
}

// NewController builds a Registry pre-wired to handle the full
// announce/accept/release exchange on behalf of the node at busAddr.
func NewController(h sender, busAddr uint8, assigner *Assigner) *Controller {
	c := &Controller{Registry: NewRegistry(), h: h, assigner: assigner, self: busAddr}
	c.Register(SubtypeAnnounce, c.onAnnounce)
	c.Register(SubtypeAccept, func(Message) error { return nil })
	c.Register(SubtypeRelease, c.onRelease)
	return c
}

func (c *Controller) onAnnounce(m Message) error {
	addr, err := c.assigner.Propose(m.MAC)
	if err != nil {
		return err
	}
	reply := Message{Subtype: SubtypePropose, MAC: m.MAC, Address: addr}
	c.h.Send(message.NewFromBytes(1, c.self, 0, ControlCode, reply.Encode()))
	return nil
}

func (c *Controller) onRelease(m Message) error {
	c.assigner.Release(m.MAC)
	return nil
}
