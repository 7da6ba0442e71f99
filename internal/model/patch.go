package model

// UserPatch is a partial update of a [User]. Nil fields are left untouched.
type UserPatch struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	ShopID   *string `json:"shopId,omitempty"`
	IsActive *bool   `json:"isActive,omitempty"`
}

// Empty reports whether the patch sets no field.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Role == nil && p.ShopID == nil && p.IsActive == nil
}

// Apply merges the set fields into u.
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.ShopID != nil {
		u.ShopID = *p.ShopID
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
}

// Validate rejects patches that would store an unknown role or blank name.
func (p UserPatch) Validate() error {
	if p.Role != nil && !p.Role.Valid() {
		return invalid("role", "must be owner or staff")
	}
	if p.Name != nil && *p.Name == "" {
		return invalid("name", "must not be empty")
	}
	return nil
}

// Document returns the remote field map holding only the set fields.
func (p UserPatch) Document() Document {
	d := Document{}
	if p.Name != nil {
		d["name"] = *p.Name
	}
	if p.Email != nil {
		d["email"] = *p.Email
	}
	if p.Role != nil {
		d["role"] = string(*p.Role)
	}
	if p.ShopID != nil {
		d["shopId"] = *p.ShopID
	}
	if p.IsActive != nil {
		d["isActive"] = *p.IsActive
	}
	return d
}

// ShopPatch is a partial update of a [Shop]. Nil fields are left untouched.
type ShopPatch struct {
	Name         *string `json:"shopName,omitempty"`
	OwnerID      *string `json:"ownerId,omitempty"`
	UPIID        *string `json:"upiId,omitempty"`
	UPIPayeeName *string `json:"upiPayeeName,omitempty"`
}

// Empty reports whether the patch sets no field.
func (p ShopPatch) Empty() bool {
	return p.Name == nil && p.OwnerID == nil && p.UPIID == nil && p.UPIPayeeName == nil
}

// Apply merges the set fields into s.
func (p ShopPatch) Apply(s *Shop) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.OwnerID != nil {
		s.OwnerID = *p.OwnerID
	}
	if p.UPIID != nil {
		s.UPIID = *p.UPIID
	}
	if p.UPIPayeeName != nil {
		s.UPIPayeeName = *p.UPIPayeeName
	}
}

// Document returns the remote field map holding only the set fields.
func (p ShopPatch) Document() Document {
	d := Document{}
	if p.Name != nil {
		d["shopName"] = *p.Name
	}
	if p.OwnerID != nil {
		d["ownerId"] = *p.OwnerID
	}
	if p.UPIID != nil {
		d["upiId"] = *p.UPIID
	}
	if p.UPIPayeeName != nil {
		d["upiPayeeName"] = *p.UPIPayeeName
	}
	return d
}
