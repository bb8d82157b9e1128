package gym

// Exercise is one entry of the exercise catalogue.
type Exercise struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Series      int    `json:"series"`
	Repetitions string `json:"repetitions"`
	Group       string `json:"group"`
	Demo        string `json:"demo"`
	Thumb       string `json:"thumb"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// HistoryEntry is a completed exercise.
type HistoryEntry struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Group     string `json:"group"`
	Hour      string `json:"hour"`
	CreatedAt string `json:"created_at"`
}

// HistoryDay groups the exercises completed on one day. Title is the day as
// formatted by the server.
type HistoryDay struct {
	Title string         `json:"title"`
	Data  []HistoryEntry `json:"data"`
}

// ProfileUpdate is the body of a profile change. Password and OldPassword
// are left empty to change the name only.
type ProfileUpdate struct {
	Name        string `json:"name"`
	Password    string `json:"password,omitempty"`
	OldPassword string `json:"old_password,omitempty"`
}
