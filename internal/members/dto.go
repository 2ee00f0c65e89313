package members

type CreateUserRequest struct {
	Name string `json:"name" binding:"required"`
}

type UserResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toResponse(u User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name.String}
}
