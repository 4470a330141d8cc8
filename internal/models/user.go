package models

// User is the persisted identity record. Phone is the login identifier and
// is immutable once registered; citizenship fields stay empty until an admin
// approves the user's verification request.
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Phone          string `json:"phone" example:"9800000001"`
	Password       string `json:"-"` // argon2id digest, never serialized
	CitizenshipNum string `json:"citizenship_num,omitempty"`
	District       string `json:"district,omitempty"`
	City           string `json:"city,omitempty"`
	WardNum        int    `json:"ward_num,omitempty"`
	Admin          bool   `json:"admin"`
}

// UserPublic is the outward-facing view returned by the user endpoints.
type UserPublic struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Phone          string `json:"phone"`
	District       string `json:"district,omitempty"`
	City           string `json:"city,omitempty"`
	WardNum        int    `json:"ward_num,omitempty"`
	CitizenshipNum string `json:"citizenship_num,omitempty"`
}

// Public strips credentials and the admin flag from a user record.
func (u User) Public() UserPublic {
	return UserPublic{
		ID:             u.ID,
		Name:           u.Name,
		Phone:          u.Phone,
		District:       u.District,
		City:           u.City,
		WardNum:        u.WardNum,
		CitizenshipNum: u.CitizenshipNum,
	}
}

// Citizenship verification statuses.
const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// CitizenshipRecord is a citizenship verification request. At most one
// record exists per phone; re-uploads replace the previous document and
// reset the status to pending.
type CitizenshipRecord struct {
	ID     int    `json:"id"`
	Phone  string `json:"phone"`
	Path   string `json:"path"`
	Status string `json:"status"` // pending / verified / rejected
}

// CitizenshipPatch carries the fields an admin supplies when approving a
// verification request. Nil means "leave untouched".
type CitizenshipPatch struct {
	CitizenshipNum *string `json:"citizenship_num,omitempty"`
	District       *string `json:"district,omitempty"`
	City           *string `json:"city,omitempty"`
	WardNum        *int    `json:"ward_num,omitempty" validate:"omitempty,gte=0"`
}

// ApplyTo merges the set fields of the patch onto a copy of u.
func (p CitizenshipPatch) ApplyTo(u User) User {
	if p.CitizenshipNum != nil {
		u.CitizenshipNum = *p.CitizenshipNum
	}
	if p.District != nil {
		u.District = *p.District
	}
	if p.City != nil {
		u.City = *p.City
	}
	if p.WardNum != nil {
		u.WardNum = *p.WardNum
	}
	return u
}
