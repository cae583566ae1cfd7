package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/board-service/internal/service"
	"go.uber.org/zap"
)

// RegisterHandlers mounts the intake API on rg.
func RegisterHandlers(rg *gin.RouterGroup, svc *service.BoardService, log *zap.SugaredLogger) {
	rg.POST("/users", registerUserHandler(svc, log))
	rg.GET("/users/:email", getUserHandler(svc, log))
	rg.POST("/boards", createBoardHandler(svc, log))
	rg.GET("/boards", listBoardsHandler(svc, log))
	rg.POST("/boards/:boardId/messages", postMessageHandler(svc, log))
	rg.GET("/boards/:boardId/messages", getMessagesHandler(svc, log))
}

type registerUserReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func registerUserHandler(svc *service.BoardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerUserReq
		if !bind(c, &req) || !requireFields(c, "name", req.Name, "email", req.Email) {
			return
		}
		email, err := svc.RegisterUser(c.Request.Context(), req.Name, req.Email)
		if err != nil {
			failWith(c, log, err, "An internal error occurred while processing the registration request")
			return
		}
		respond(c, http.StatusAccepted, gin.H{
			"message": "User registration request submitted successfully",
			"email":   email,
			"status":  "processing",
		}, "Registration request will be processed asynchronously")
	}
}

func getUserHandler(svc *service.BoardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.GetUserByEmail(c.Request.Context(), c.Param("email"))
		if err != nil {
			failWith(c, log, err, "An internal error occurred while retrieving the user")
			return
		}
		respond(c, http.StatusOK, u, "")
	}
}

type createBoardReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
}

func createBoardHandler(svc *service.BoardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createBoardReq
		if !bind(c, &req) ||
			!requireFields(c, "name", req.Name, "description", req.Description, "createdBy", req.CreatedBy) {
			return
		}
		name, err := svc.CreateBoard(c.Request.Context(), req.Name, req.Description, req.CreatedBy)
		if err != nil {
			failWith(c, log, err, "An internal error occurred while processing the board creation request")
			return
		}
		respond(c, http.StatusAccepted, gin.H{
			"message": "Board creation request submitted successfully",
			"name":    name,
			"status":  "processing",
		}, "Board creation request will be processed asynchronously")
	}
}

func listBoardsHandler(svc *service.BoardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		boards, err := svc.ListBoards(c.Request.Context())
		if err != nil {
			failWith(c, log, err, "An internal error occurred while retrieving boards")
			return
		}
		respond(c, http.StatusOK, gin.H{"boards": boards, "count": len(boards)}, "")
	}
}

type postMessageReq struct {
	Content  string `json:"content"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

func postMessageHandler(svc *service.BoardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req postMessageReq
		if !bind(c, &req) ||
			!requireFields(c, "content", req.Content, "userId", req.UserID, "userName", req.UserName) {
			return
		}
		boardID := c.Param("boardId")
		if err := svc.PostMessage(c.Request.Context(), boardID, req.Content, req.UserID, req.UserName); err != nil {
			failWith(c, log, err, "An internal error occurred while processing the message posting request")
			return
		}
		respond(c, http.StatusAccepted, gin.H{
			"message": "Message posting request submitted successfully",
			"boardId": boardID,
			"status":  "processing",
		}, "Message will be processed asynchronously")
	}
}

func getMessagesHandler(svc *service.BoardService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultMessageLimit)))
		if err != nil {
			limit = service.DefaultMessageLimit
		}
		boardID := c.Param("boardId")
		b, msgs, limit, err := svc.GetMessages(c.Request.Context(), boardID, limit)
		if err != nil {
			failWith(c, log, err, "An internal error occurred while retrieving messages")
			return
		}
		respond(c, http.StatusOK, gin.H{
			"boardId":   boardID,
			"boardName": b.Name,
			"messages":  msgs,
			"count":     len(msgs),
			"limit":     limit,
		}, "")
	}
}

func respond(c *gin.Context, status int, data any, message string) {
	body := gin.H{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": code, "message": message})
}

func failWith(c *gin.Context, log *zap.SugaredLogger, err error, internal string) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail):
		fail(c, http.StatusBadRequest, "INVALID_EMAIL", "Invalid email format")
	case errors.Is(err, service.ErrUserExists):
		fail(c, http.StatusConflict, "USER_EXISTS", "User with this email already exists")
	case errors.Is(err, service.ErrUserNotFound):
		fail(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrBoardNotFound):
		fail(c, http.StatusNotFound, "BOARD_NOT_FOUND", "Board not found")
	default:
		log.Errorw("request failed", "path", c.FullPath(), "err", err)
		fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", internal)
	}
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON in request body")
		return false
	}
	return true
}

// requireFields takes name/value pairs and rejects blank values.
func requireFields(c *gin.Context, pairs ...string) bool {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		fail(c, http.StatusBadRequest, "MISSING_FIELDS", "Missing required fields: "+strings.Join(missing, ", "))
		return false
	}
	return true
}
