package service

import (
	"context"
	"strings"

	"github.com/Shivanand-hulikatti/event-participation/internal/model"
	"github.com/Shivanand-hulikatti/event-participation/internal/service/ports"
	"github.com/sirupsen/logrus"
)

// DirectoryService manages the users and categories events refer to.
type DirectoryService struct {
	users      ports.UserRepo
	categories ports.CategoryRepo
	log        logrus.FieldLogger
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(users ports.UserRepo, categories ports.CategoryRepo, log logrus.FieldLogger) *DirectoryService {
	return &DirectoryService{users: users, categories: categories, log: log.WithField("component", "directory")}
}

// CreateUser registers a user. Emails are unique, compared case-insensitively.
func (s *DirectoryService) CreateUser(ctx context.Context, in model.NewUserRequest) (*model.User, error) {
	u := &model.User{
		ID:    newID(),
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
	}
	err := s.users.Create(ctx, u)
	logOutcome(s.log.WithFields(logrus.Fields{"user_id": u.ID}), err, "create user")
	if err != nil {
		return nil, wrap("create user", err)
	}
	return u, nil
}

// GetUser returns a user by id.
func (s *DirectoryService) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	return u, wrap("get user", err)
}

// CreateCategory adds a category. Names are unique.
func (s *DirectoryService) CreateCategory(ctx context.Context, in model.NewCategoryRequest) (*model.Category, error) {
	c := &model.Category{ID: newID(), Name: strings.TrimSpace(in.Name)}
	err := s.categories.Create(ctx, c)
	logOutcome(s.log.WithFields(logrus.Fields{"category_id": c.ID}), err, "create category")
	if err != nil {
		return nil, wrap("create category", err)
	}
	return c, nil
}
