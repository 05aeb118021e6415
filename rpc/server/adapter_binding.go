package server

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dBind/lib/binding"
	"github.com/ValentinKolb/dBind/rpc/common"
)

// handlerFunc serves one message type. The request is already validated.
type handlerFunc func(req *common.Message, svc binding.IService) *common.Message

// handlers is the dispatch table of the binding adapter
var handlers = map[common.MessageType]handlerFunc{
	common.MsgTBindNew: func(req *common.Message, svc binding.IService) *common.Message {
		result, err := svc.New(req.UserID, req.ChannelID)
		return common.NewResultResponse(req.MsgType, result, err)
	},
	common.MsgTBindVerify: func(req *common.Message, svc binding.IService) *common.Message {
		result, err := svc.Verify(req.UserID, req.ChannelID, req.Code)
		return common.NewResultResponse(req.MsgType, result, err)
	},
	common.MsgTBindUpdate: func(req *common.Message, svc binding.IService) *common.Message {
		result, err := svc.Update(req.UserID, req.OldChannelID, req.NewChannelID)
		return common.NewResultResponse(req.MsgType, result, err)
	},
	common.MsgTBindDel: func(req *common.Message, svc binding.IService) *common.Message {
		return common.NewBindDelResponse(svc.Delete(req.UserID, req.ChannelID))
	},
	common.MsgTBindQuery: func(req *common.Message, svc binding.IService) *common.Message {
		userIDs, err := svc.Query(req.UserIDs)
		return common.NewBindQueryResponse(userIDs, err)
	},
}

// NewBindingServerAdapter creates the adapter that maps binding messages onto a binding.IService
func NewBindingServerAdapter() IRPCServerAdapter {
	return &bindingServerAdapterImpl{}
}

type bindingServerAdapterImpl struct{}

func (adapter *bindingServerAdapterImpl) Handle(req *common.Message, svc binding.IService) *common.Message {
	// Check for nil service
	if svc == nil {
		return common.NewErrorResponse(common.ErrKindInternal, "handler: binding service is nil")
	}

	handler, ok := handlers[req.MsgType]
	if !ok {
		return common.NewErrorResponse(
			common.ErrKindUnsupported,
			fmt.Sprintf("RPC BindingAdapter - Unsupported message type: %s", req.MsgType),
		)
	}

	if missing := missingFields(req); len(missing) > 0 {
		return &common.Message{
			MsgType: req.MsgType,
			Err:     fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")),
			ErrKind: common.ErrKindInvalid,
		}
	}

	return handler(req, svc)
}

// missingFields lists the gateway names of the required fields that are empty
func missingFields(req *common.Message) []string {
	var missing []string
	check := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch req.MsgType {
	case common.MsgTBindNew, common.MsgTBindDel:
		check("userId", req.UserID)
		check("gcmId", req.ChannelID)
	case common.MsgTBindVerify:
		check("userId", req.UserID)
		check("gcmId", req.ChannelID)
		check("code", req.Code)
	case common.MsgTBindUpdate:
		check("userId", req.UserID)
		check("oldGcmId", req.OldChannelID)
		check("newGcmId", req.NewChannelID)
	case common.MsgTBindQuery:
		if len(req.UserIDs) == 0 {
			missing = append(missing, "userIdList")
		}
	}
	return missing
}
