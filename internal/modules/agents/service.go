package agents

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/overseer/internal/domain"
	"github.com/aristath/overseer/internal/events"
)

// Service provides agent lifecycle operations
type Service struct {
	repo         *Repository
	events       *events.Manager
	startingCash float64
	log          zerolog.Logger
}

// NewService creates a new agent service
func NewService(repo *Repository, eventManager *events.Manager, startingCash float64, log zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		events:       eventManager,
		startingCash: startingCash,
		log:          log.With().Str("service", "agents").Logger(),
	}
}

// Create registers a new agent with the configured starting cash
func (s *Service) Create(name string, mode string) (*domain.Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("agent name is required")
	}

	parsedMode := domain.ModeObservation
	if mode != "" {
		m, err := domain.ParseAgentMode(mode)
		if err != nil {
			return nil, err
		}
		parsedMode = m
	}

	agent := &domain.Agent{
		ID:     uuid.New().String(),
		Name:   name,
		Status: domain.AgentInactive,
		Mode:   parsedMode,
		Cash:   s.startingCash,
	}

	created, err := s.repo.Create(agent)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	s.log.Info().
		Str("agent_id", created.ID).
		Str("name", created.Name).
		Float64("cash", created.Cash).
		Msg("Agent created")

	s.events.Emit(events.AgentCreated, "agents", map[string]interface{}{
		"agent_id": created.ID,
		"name":     created.Name,
	})

	return created, nil
}

// Get retrieves an agent by ID
func (s *Service) Get(id string) (*domain.Agent, error) {
	agent, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, &domain.AgentNotFoundError{AgentID: id}
	}
	return agent, nil
}

// List returns all registered agents
func (s *Service) List() ([]domain.Agent, error) {
	return s.repo.List()
}

// Update changes an agent's name and/or default mode
func (s *Service) Update(id string, name string, mode string) (*domain.Agent, error) {
	agent, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name != "" {
		agent.Name = name
	}
	if mode != "" {
		parsed, err := domain.ParseAgentMode(mode)
		if err != nil {
			return nil, err
		}
		agent.Mode = parsed
	}

	if err := s.repo.Update(agent); err != nil {
		return nil, err
	}

	s.events.Emit(events.AgentUpdated, "agents", map[string]interface{}{
		"agent_id": agent.ID,
	})

	return agent, nil
}

// Suspend blocks an agent from future executions until resumed
func (s *Service) Suspend(id string) (*domain.Agent, error) {
	agent, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if agent.Status == domain.AgentSuspended {
		return agent, nil
	}

	if err := s.repo.UpdateStatus(id, domain.AgentSuspended); err != nil {
		return nil, err
	}
	agent.Status = domain.AgentSuspended

	s.log.Info().Str("agent_id", id).Msg("Agent suspended")
	s.events.Emit(events.AgentSuspended, "agents", map[string]interface{}{
		"agent_id": id,
	})

	return agent, nil
}

// Resume lifts a suspension and returns the agent to INACTIVE
func (s *Service) Resume(id string) (*domain.Agent, error) {
	agent, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if agent.Status != domain.AgentSuspended {
		return agent, nil
	}

	if err := s.repo.UpdateStatus(id, domain.AgentInactive); err != nil {
		return nil, err
	}
	agent.Status = domain.AgentInactive

	s.log.Info().Str("agent_id", id).Msg("Agent resumed")
	s.events.Emit(events.AgentResumed, "agents", map[string]interface{}{
		"agent_id": id,
	})

	return agent, nil
}

// Delete removes an agent
func (s *Service) Delete(id string) error {
	if err := s.repo.Delete(id); err != nil {
		return err
	}

	s.log.Info().Str("agent_id", id).Msg("Agent deleted")
	s.events.Emit(events.AgentDeleted, "agents", map[string]interface{}{
		"agent_id": id,
	})

	return nil
}
