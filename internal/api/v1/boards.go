package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/domain"
	"github.com/gosuda/boardsync/internal/feed"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

type ListObjectsInput struct {
	BoardID string `path:"boardID" minLength:"1" doc:"Board ID"`
}

type ListObjectsOutput struct {
	Body []*domain.Object
}

// WriteBody is one document write. Omitting data deletes the object.
type WriteBody struct {
	ObjectID string         `json:"objectId" minLength:"1" doc:"Object ID"`
	Data     map[string]any `json:"data,omitempty" doc:"Full object document"`
}

type CommitInput struct {
	BoardID string `path:"boardID" minLength:"1" doc:"Board ID"`
	Body    struct {
		Writes []WriteBody `json:"writes" doc:"Writes applied atomically"`
	}
}

type CommitOutput struct {
	Body struct {
		Events []domain.SyncEvent `json:"events"`
	}
}

type DeleteObjectInput struct {
	BoardID  string `path:"boardID" minLength:"1" doc:"Board ID"`
	ObjectID string `path:"objectID" minLength:"1" doc:"Object ID"`
}

func RegisterBoardRoutes(api huma.API, boards BoardService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-board-objects",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}/objects",
		Summary:     "List every object on a board",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *ListObjectsInput) (*ListObjectsOutput, error) {
		if _, ok := middleware.UserIDFromContext(ctx); !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		objs, err := boards.Snapshot(ctx, input.BoardID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list objects", err)
		}
		if objs == nil {
			objs = []*domain.Object{}
		}

		return &ListObjectsOutput{Body: objs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "commit-board-writes",
		Method:      http.MethodPost,
		Path:        "/boards/{boardID}/commits",
		Summary:     "Apply a batch of writes atomically",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *CommitInput) (*CommitOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}
		role, _ := middleware.RoleFromContext(ctx)
		if !auth.CanWrite(role) {
			return nil, huma.Error403Forbidden("role cannot modify this board")
		}

		if len(input.Body.Writes) > boards.MaxBatch() {
			return nil, huma.NewError(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("batch of %d writes exceeds limit %d", len(input.Body.Writes), boards.MaxBatch()))
		}

		writes := make([]domain.Write, 0, len(input.Body.Writes))
		for _, wb := range input.Body.Writes {
			w, err := wb.toWrite()
			if err != nil {
				return nil, huma.Error422UnprocessableEntity("invalid write for object "+wb.ObjectID, err)
			}
			writes = append(writes, w)
		}

		events, err := boards.CommitAs(ctx, input.BoardID, userID, writes)
		if err != nil {
			return nil, commitError(err)
		}

		out := &CommitOutput{}
		out.Body.Events = events
		if out.Body.Events == nil {
			out.Body.Events = []domain.SyncEvent{}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-board-object",
		Method:      http.MethodDelete,
		Path:        "/boards/{boardID}/objects/{objectID}",
		Summary:     "Delete one object",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *DeleteObjectInput) (*struct{}, error) {
		if _, ok := middleware.UserIDFromContext(ctx); !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}
		role, _ := middleware.RoleFromContext(ctx)
		if !auth.CanWrite(role) {
			return nil, huma.Error403Forbidden("role cannot modify this board")
		}

		if err := boards.Delete(ctx, input.BoardID, input.ObjectID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("object not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete object", err)
		}

		return nil, nil
	})
}

// toWrite round-trips the loosely typed document through the object codec,
// which selects the variant by its "type" field.
func (wb WriteBody) toWrite() (domain.Write, error) {
	if wb.Data == nil {
		return domain.Write{ObjectID: wb.ObjectID}, nil
	}

	raw, err := json.Marshal(wb.Data)
	if err != nil {
		return domain.Write{}, err
	}
	obj := &domain.Object{}
	if err := json.Unmarshal(raw, obj); err != nil {
		return domain.Write{}, err
	}
	if obj.ID == "" {
		obj.ID = wb.ObjectID
	}
	return domain.Write{ObjectID: wb.ObjectID, Data: obj}, nil
}

func commitError(err error) error {
	switch {
	case errors.Is(err, feed.ErrBatchTooLarge):
		return huma.NewError(http.StatusRequestEntityTooLarge, "batch too large", err)
	case errors.Is(err, feed.ErrInvalidWrite), errors.Is(err, domain.ErrUnknownObjectType):
		return huma.Error422UnprocessableEntity("invalid write", err)
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("board not found")
	default:
		return huma.Error500InternalServerError("failed to commit writes", err)
	}
}
