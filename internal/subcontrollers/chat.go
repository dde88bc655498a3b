package subcontrollers

import (
	"context"

	"chatsino/internal/models"
	"chatsino/internal/services"

	log "github.com/sirupsen/logrus"
)

func RegisterChat(r *Router, svc *services.ChatroomService) {
	r.Register(models.KindListChatrooms, Route{
		Handler: func(_ context.Context, req Request) (any, error) {
			return svc.List(req.From.ID), nil
		},
		Requirement: models.PermissionVisitor,
		Fallback:    "Unable to list chatrooms.",
	})

	r.Register(models.KindJoinChatroom, Route{
		NewArgs: func() any { return &models.RoomArgs{} },
		Handler: func(ctx context.Context, req Request) (any, error) {
			args := req.Args.(*models.RoomArgs)
			return svc.Join(ctx, req.From.ID, args.Room)
		},
		Fallback: "Unable to join chatroom.",
	})

	r.Register(models.KindListChatroomMessages, Route{
		NewArgs: func() any { return &models.RoomArgs{} },
		Handler: func(ctx context.Context, req Request) (any, error) {
			args := req.Args.(*models.RoomArgs)
			return svc.Messages(ctx, req.From.ID, args.Room)
		},
		Requirement: models.PermissionVisitor,
		Fallback:    "Unable to list chatroom messages.",
	})

	r.Register(models.KindSendChatMessage, Route{
		NewArgs: func() any { return &models.SendChatMessageArgs{} },
		Handler: func(ctx context.Context, req Request) (any, error) {
			args := req.Args.(*models.SendChatMessageArgs)
			msg, members, err := svc.Send(ctx, req.From, args.Room, args.Message)
			if err != nil {
				return nil, err
			}
			for _, member := range members {
				if err := r.SendTo(ctx, member, models.KindNewChatMessage, msg); err != nil {
					r.log.WithFields(log.Fields{"room": msg.Room, "client_id": member}).
						WithError(err).Warn("chat fan-out failed")
				}
			}
			return msg, nil
		},
		Fallback: "Unable to send chat message.",
	})
}
