package ws

type Hubs struct {
	Session *SessionHub
	Proctor *ProctorHub
}

func NewHubs() *Hubs {
	return &Hubs{
		Session: NewSessionHub(),
		Proctor: NewProctorHub(),
	}
}

func (h *Hubs) Run() {
	go h.Session.Run()
	go h.Proctor.Run()
}
