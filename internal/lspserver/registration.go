package lspserver

import (
	"sync"

	"github.com/google/uuid"
	"go.lsp.dev/protocol"
)

// registrations tracks the capabilities registered dynamically with the
// client. A capability registered dynamically is not advertised in the
// initialize result.
type registrations struct {
	configuration   bool
	formatting      bool
	rangeFormatting bool

	mu  sync.Mutex
	ids map[string]string // method -> registration id
}

func (r *registrations) configure(caps protocol.ClientCapabilities) {
	if ws := caps.Workspace; ws != nil && ws.DidChangeConfiguration != nil {
		r.configuration = ws.DidChangeConfiguration.DynamicRegistration
	}
	if td := caps.TextDocument; td != nil {
		r.formatting = td.Formatting != nil && td.Formatting.DynamicRegistration
		r.rangeFormatting = td.RangeFormatting != nil && td.RangeFormatting.DynamicRegistration
	}
}

func (r *registrations) pending() []protocol.Registration {
	selector := protocol.TextDocumentRegistrationOptions{
		DocumentSelector: protocol.DocumentSelector{{Language: LanguageID}},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ids == nil {
		r.ids = make(map[string]string)
	}
	var regs []protocol.Registration
	add := func(method string, opts any) {
		if _, done := r.ids[method]; done {
			return
		}
		id := uuid.New().String()
		r.ids[method] = id
		regs = append(regs, protocol.Registration{ID: id, Method: method, RegisterOptions: opts})
	}
	if r.configuration {
		add(protocol.MethodWorkspaceDidChangeConfiguration, nil)
	}
	if r.formatting {
		add(protocol.MethodTextDocumentFormatting, selector)
	}
	if r.rangeFormatting {
		add(protocol.MethodTextDocumentRangeFormatting, selector)
	}
	return regs
}

// ID returns the registration id of method, if registered.
func (r *registrations) ID(method string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.ids[method]
	return id, ok
}

// registerCapabilities sends client/registerCapability for every
// capability the client registers dynamically. The call runs off the read
// loop since its response arrives on that loop.
func (s *Server) registerCapabilities() {
	regs := s.registrations.pending()
	if len(regs) == 0 {
		return
	}
	conn := s.connection()
	ctx := s.backgroundContext()
	go func() {
		_, err := conn.Call(ctx, protocol.MethodClientRegisterCapability, &protocol.RegistrationParams{Registrations: regs}, nil)
		if err != nil {
			s.log.WithError(err).Warn("capability registration failed")
			return
		}
		for _, reg := range regs {
			s.log.WithField("method", reg.Method).WithField("id", reg.ID).Debug("registered capability")
		}
	}()
}
