package adapter

import (
	"fmt"
	"net/http"

	"github.com/akolanti/rightsbot/internal/api"
	"github.com/akolanti/rightsbot/internal/config"
	"github.com/akolanti/rightsbot/internal/domain/commonModels"
	"github.com/akolanti/rightsbot/internal/domain/jobModel"
	"github.com/akolanti/rightsbot/internal/rag"
)

func ToInitJobResponse(id string, chatId string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		ChatId:    chatId,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:              string(job.Status),
		RAGExternalResponse: ToRAGExternalStatus(job.JobPayload),
	}

	return api.JobResponse{
		Id:        job.Id,
		ChatId:    job.ChatId,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToRAGExternalStatus(ragData jobModel.JobPayload) *api.RAGResponse {
	if ragData.Answer == "" && len(ragData.Sources) == 0 {
		return nil
	}

	return &api.RAGResponse{
		Question: ragData.Question,
		Answer:   ragData.Answer,
		Sources:  ragData.Sources,
	}
}

func ToMessages(transcript []commonModels.Message) []api.MessageDTO {
	out := make([]api.MessageDTO, 0, len(transcript))
	for _, m := range transcript {
		out = append(out, api.MessageDTO{Role: string(m.Role), Content: m.Content, CreatedAt: m.CreatedAt})
	}
	return out
}

// ToEngineStatus reports a failed build with the message the UI shows to the user
func ToEngineStatus(st rag.EngineStatus) api.EngineStatus {
	out := api.EngineStatus{
		Ready:     st.Ready,
		Building:  st.Building,
		Documents: st.Documents,
		Chunks:    st.Chunks,
		BuiltAt:   st.BuiltAt,
	}
	if !st.Ready && !st.Building && st.Error != "" {
		out.Error = rag.ErrEngineUnavailable.Error()
	}
	return out
}

func ToSessionResponse(chatId string, transcript []commonModels.Message, pending bool, engine rag.EngineStatus) api.SessionResponse {
	return api.SessionResponse{
		ChatId:      chatId,
		Messages:    ToMessages(transcript),
		Pending:     pending,
		Placeholder: config.ChatInputPlaceholder,
		Thinking:    config.ThinkingMessage,
		Engine:      ToEngineStatus(engine),
	}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id: id,
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   code == http.StatusConflict || code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable,
		},
	}
}
