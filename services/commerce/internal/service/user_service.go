package service

import (
	"context"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/db"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/mylogger"
	"github.com/KBroJ/LoopPak-BE-sub001/pkg/utils"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/domain"
	"github.com/KBroJ/LoopPak-BE-sub001/services/commerce/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SignUpCommand struct {
	LoginID string `json:"loginId" validate:"required,alphanum,min=4,max=20"`
	Email   string `json:"email" validate:"required,email"`
}

type UserService interface {
	// SignUp creates the user together with an empty point wallet.
	SignUp(ctx context.Context, cmd SignUpCommand) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userService struct {
	uow       *db.UnitOfWork
	userRepo  repository.UserRepository
	pointRepo repository.PointRepository
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewUserService(
	uow *db.UnitOfWork,
	userRepo repository.UserRepository,
	pointRepo repository.PointRepository,
	logger *zap.Logger,
) UserService {
	return &userService{
		uow:       uow,
		userRepo:  userRepo,
		pointRepo: pointRepo,
		logger:    logger,
		tracer:    otel.Tracer("service/user_service"),
	}
}

func (s *userService) SignUp(ctx context.Context, cmd SignUpCommand) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.SignUp")
	defer span.End()

	if err := utils.Validate(cmd); err != nil {
		return nil, err
	}

	user := &domain.User{
		LoginID: cmd.LoginID,
		Email:   cmd.Email,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx *db.Tx) error {
		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			return err
		}

		return s.pointRepo.Create(ctx, tx, user.ID)
	})
	if err != nil {
		span.RecordError(err)

		mylogger.Warn(
			ctx,
			s.logger,
			"Sign up failed",
			zap.String("login_id", cmd.LoginID),
			zap.Error(err),
		)

		return nil, err
	}

	mylogger.Info(ctx, s.logger, "User signed up", zap.Int64("user_id", user.ID))

	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.GetByID")
	defer span.End()

	return s.userRepo.GetByID(ctx, id)
}
