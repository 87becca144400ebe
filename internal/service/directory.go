package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var dirTracer = otel.Tracer("service/directory")

// DirectoryService manages customer and employee records.
type DirectoryService struct {
	store  port.Store
	logger *zap.Logger
}

// NewDirectoryService creates a new directory service.
func NewDirectoryService(store port.Store, logger *zap.Logger) *DirectoryService {
	return &DirectoryService{store: store, logger: logger}
}

// ============================================================
// Customers
// ============================================================

// ListCustomers returns the directory with per-customer account counts.
func (s *DirectoryService) ListCustomers(ctx context.Context) ([]domain.CustomerSummary, error) {
	ctx, span := dirTracer.Start(ctx, "DirectoryService.ListCustomers")
	defer span.End()

	return s.store.ListCustomerSummaries(ctx)
}

// GetProfile returns the customer profile for the session user.
func (s *DirectoryService) GetProfile(ctx context.Context, sess *domain.Session) (*domain.Customer, error) {
	ctx, span := dirTracer.Start(ctx, "DirectoryService.GetProfile")
	defer span.End()

	return s.store.GetCustomer(ctx, sess.Username)
}

// UpdateProfile changes the session customer's display name and phone.
func (s *DirectoryService) UpdateProfile(ctx context.Context, sess *domain.Session, req *domain.UpdateProfileRequest) (*domain.Customer, error) {
	ctx, span := dirTracer.Start(ctx, "DirectoryService.UpdateProfile")
	defer span.End()

	fullname := strings.TrimSpace(req.Fullname)
	if fullname == "" {
		return nil, &domain.ErrValidation{Field: "fullname", Message: "fullname is required"}
	}
	if err := validatePhone(req.Phone); err != nil {
		return nil, err
	}

	if err := s.store.UpdateCustomerProfile(ctx, sess.Username, fullname, req.Phone); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", zap.String("username", sess.Username))
	return s.store.GetCustomer(ctx, sess.Username)
}

// CreateCustomer registers a profile and its login credential together.
func (s *DirectoryService) CreateCustomer(ctx context.Context, sess *domain.Session, req *domain.CreateCustomerRequest) (*domain.Customer, error) {
	ctx, span := dirTracer.Start(ctx, "DirectoryService.CreateCustomer")
	defer span.End()
	span.SetAttributes(attribute.String("username", req.Username))

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, &domain.ErrValidation{Field: "username", Message: "username is required"}
	}
	if strings.TrimSpace(req.Fullname) == "" {
		return nil, &domain.ErrValidation{Field: "fullname", Message: "fullname is required"}
	}
	if err := validatePhone(req.Phone); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	c := &domain.Customer{
		Username:   username,
		Fullname:   strings.TrimSpace(req.Fullname),
		NationalID: req.NationalID,
		Phone:      req.Phone,
	}
	if err := s.store.RegisterCustomer(ctx, c, hash); err != nil {
		return nil, err
	}

	s.audit(ctx, sess.Username, "CREATE", "customers",
		fmt.Sprintf("customer %s registered", username))
	return c, nil
}

// ============================================================
// Employees
// ============================================================

func (s *DirectoryService) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	ctx, span := dirTracer.Start(ctx, "DirectoryService.ListEmployees")
	defer span.End()

	return s.store.ListEmployees(ctx)
}

// SelfEmployee returns the session user's own employee record, used by
// staff to see their salary.
func (s *DirectoryService) SelfEmployee(ctx context.Context, sess *domain.Session) (*domain.Employee, error) {
	ctx, span := dirTracer.Start(ctx, "DirectoryService.SelfEmployee")
	defer span.End()

	return s.store.GetEmployee(ctx, sess.Username)
}

// UpdateEmployee changes an employee's salary and position.
func (s *DirectoryService) UpdateEmployee(ctx context.Context, sess *domain.Session, username string, req *domain.UpdateEmployeeRequest) (*domain.Employee, error) {
	ctx, span := dirTracer.Start(ctx, "DirectoryService.UpdateEmployee")
	defer span.End()
	span.SetAttributes(attribute.String("username", username))

	if req.Salary < 0 {
		return nil, &domain.ErrValidation{Field: "salary", Message: "salary cannot be negative"}
	}
	if !req.Position.In(domain.RoleStaff, domain.RoleDirector) {
		return nil, &domain.ErrValidation{Field: "position", Message: "position must be STAFF or DIRECTOR"}
	}

	if err := s.store.UpdateEmployee(ctx, username, req.Salary, req.Position); err != nil {
		return nil, err
	}

	s.audit(ctx, sess.Username, "UPDATE", "employees",
		fmt.Sprintf("employee %s set to %s with salary %.2f", username, req.Position, req.Salary))
	return s.store.GetEmployee(ctx, username)
}

// validatePhone enforces the stored phone format: exactly ten digits.
func validatePhone(phone string) error {
	if len(phone) != 10 {
		return &domain.ErrValidation{Field: "phone", Message: "phone must be exactly 10 digits"}
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return &domain.ErrValidation{Field: "phone", Message: "phone must contain only digits"}
		}
	}
	return nil
}

func (s *DirectoryService) audit(ctx context.Context, actor, action, object, detail string) {
	e := &domain.AuditEvent{Actor: actor, Action: action, ObjectName: object, Detail: detail}
	if err := s.store.RecordEvent(ctx, e); err != nil {
		s.logger.Error("audit event dropped",
			zap.String("action", action),
			zap.String("object", object),
			zap.Error(err),
		)
	}
}
