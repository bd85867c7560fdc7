package handlers

import "github.com/puckstats/shotrecorder/internal/dispatcher"

// Dispatcher adapters: parse the payload, then hand the event to the typed method.

func (s *Service) handleTick(e dispatcher.Event) (any, error) {
	ev, err := s.deps.Parser.ParseTick(e.Args)
	if err != nil {
		return nil, err
	}
	s.OnTick(ev)
	return nil, nil
}

func (s *Service) handleStickReleased(e dispatcher.Event) (any, error) {
	ev, err := s.deps.Parser.ParseStickReleased(e.Args)
	if err != nil {
		return nil, err
	}
	s.OnStickReleased(ev)
	return nil, nil
}

func (s *Service) handleStickTouch(e dispatcher.Event) (any, error) {
	ev, err := s.deps.Parser.ParseStickTouch(e.Args)
	if err != nil {
		return nil, err
	}
	s.OnStickTouch(ev)
	return nil, nil
}

func (s *Service) handleCollision(e dispatcher.Event) (any, error) {
	ev, err := s.deps.Parser.ParseCollision(e.Args)
	if err != nil {
		return nil, err
	}
	s.OnCollision(ev)
	return nil, nil
}

func (s *Service) handleGoalScored(e dispatcher.Event) (any, error) {
	ev, err := s.deps.Parser.ParseGoalScored(e.Args)
	if err != nil {
		return nil, err
	}
	return s.OnGoalScored(ev).String(), nil
}

func (s *Service) handlePhaseChanged(e dispatcher.Event) (any, error) {
	ev, err := s.deps.Parser.ParsePhaseChanged(e.Args)
	if err != nil {
		return nil, err
	}
	s.OnGamePhaseChanged(ev)
	return nil, nil
}

func (s *Service) handlePhysics(e dispatcher.Event) (any, error) {
	pc, err := s.deps.Parser.ParsePhysics(e.Args)
	if err != nil {
		return nil, err
	}
	s.OnPhysicsConstants(pc)
	return nil, nil
}

func (s *Service) handlePlayerUpdate(e dispatcher.Event) (any, error) {
	p, err := s.deps.Parser.ParsePlayer(e.Args)
	if err != nil {
		return nil, err
	}
	s.OnPlayerUpdate(p)
	return nil, nil
}

func (s *Service) handlePlayerRemoved(e dispatcher.Event) (any, error) {
	id, err := s.deps.Parser.ParsePlayerRemoved(e.Args)
	if err != nil {
		return nil, err
	}
	s.OnPlayerRemoved(id)
	return nil, nil
}

func (s *Service) handlePuckRemoved(e dispatcher.Event) (any, error) {
	id, err := s.deps.Parser.ParsePuckRemoved(e.Args)
	if err != nil {
		return nil, err
	}
	s.OnPuckRemoved(id)
	return nil, nil
}

func (s *Service) handleShutdown(e dispatcher.Event) (any, error) {
	if err := s.OnShutdown(); err != nil {
		return nil, err
	}
	return "flushed", nil
}
