package admin

import "google.golang.org/grpc"

// Registrar ties the admin service into the gRPC server.
type Registrar struct {
	svc *Service
}

func NewRegistrar(svc *Service) *Registrar {
	return &Registrar{svc: svc}
}

func (r *Registrar) Register(s *grpc.Server) {
	RegisterAdminServer(s, r.svc)
}
