package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseObligationStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    ObligationStatus
		wantErr bool
	}{
		{name: "valid uppercase", input: "OVERDUE", want: ObligationOverdue},
		{name: "valid lowercase with spaces", input: " pending ", want: ObligationPending},
		{name: "invalid", input: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseObligationStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseObligationStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseObligationStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseObligationStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestObligationNotifiable(t *testing.T) {
	t.Parallel()

	protestedAt := time.Now()

	tests := []struct {
		name       string
		obligation *Obligation
		want       bool
	}{
		{name: "nil", obligation: nil, want: false},
		{name: "pending", obligation: &Obligation{Status: ObligationPending}, want: true},
		{name: "overdue", obligation: &Obligation{Status: ObligationOverdue}, want: true},
		{name: "paid", obligation: &Obligation{Status: ObligationPaid}, want: false},
		{name: "cancelled", obligation: &Obligation{Status: ObligationCancelled}, want: false},
		{name: "protested overdue", obligation: &Obligation{Status: ObligationOverdue, ProtestedAt: &protestedAt}, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.obligation.Notifiable(); got != tt.want {
				t.Fatalf("Notifiable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestObligationDaysOverdue(t *testing.T) {
	t.Parallel()

	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	obligation := &Obligation{DueDate: due, Status: ObligationOverdue}

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want int
	}{
		{
			name: "not yet due",
			now:  time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: 0,
		},
		{
			name: "due today",
			now:  time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: 0,
		},
		{
			name: "six days over",
			now:  time.Date(2024, 3, 7, 1, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: 6,
		},
		{
			name: "tenant behind utc still on due day",
			now:  time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC),
			loc:  time.FixedZone("tenant", -3*3600),
			want: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := obligation.DaysOverdue(tt.now, tt.loc); got != tt.want {
				t.Fatalf("DaysOverdue() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestObligationValidate(t *testing.T) {
	t.Parallel()

	valid := Obligation{
		TenantID:    "tenant-1",
		ClientID:    "client-1",
		AmountCents: 25990,
		DueDate:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:      ObligationPending,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(o *Obligation)
	}{
		{name: "missing tenant", mutate: func(o *Obligation) { o.TenantID = "" }},
		{name: "missing client", mutate: func(o *Obligation) { o.ClientID = "" }},
		{name: "zero amount", mutate: func(o *Obligation) { o.AmountCents = 0 }},
		{name: "zero due date", mutate: func(o *Obligation) { o.DueDate = time.Time{} }},
		{name: "bad status", mutate: func(o *Obligation) { o.Status = "LOST" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := valid
			tt.mutate(&o)
			if err := o.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}
