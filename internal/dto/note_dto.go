package dto

type CreateNoteRequest struct {
	CandidateId string `json:"candidateId" validate:"required"`
	Content     string `json:"content" validate:"required,max=10000"`
}
