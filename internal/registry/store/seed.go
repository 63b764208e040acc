// Package store holds the registry persistence backends and bootstrap data.
package store

import (
	"docverify/internal/registry/models"
)

// DemoDoctor is a bootstrap registration. Verified entries are approved after
// submission so they carry a real ledger receipt.
type DemoDoctor struct {
	LicenseNumber string
	Profile       models.Profile
	Verified      bool
}

// DemoReport is a bootstrap report and the status it is advanced to.
type DemoReport struct {
	Content models.ReportContent
	Status  models.ReportStatus
}

// DemoDoctors returns the demo registrations shown on a fresh dashboard.
func DemoDoctors() []DemoDoctor {
	return []DemoDoctor{
		{
			LicenseNumber: "MD12345678",
			Verified:      true,
			Profile: models.Profile{
				Name:           "Dr. Jane Smith",
				Email:          "jane.smith@example.com",
				Specialization: "Cardiology",
				Institution:    "Harvard Medical School",
				GraduationYear: 2010,
				Address:        "123 Medical Center Dr, Boston, MA",
				Bio:            "Experienced cardiologist with over 10 years of practice",
			},
		},
		{
			LicenseNumber: "MD87654321",
			Verified:      true,
			Profile: models.Profile{
				Name:           "Dr. Michael Johnson",
				Email:          "michael.johnson@example.com",
				Specialization: "Neurology",
				Institution:    "Johns Hopkins University",
				GraduationYear: 2012,
				Address:        "456 Health Blvd, Baltimore, MD",
				Bio:            "Specializing in neurological disorders and treatments",
			},
		},
		{
			LicenseNumber: "MD23456789",
			Profile: models.Profile{
				Name:           "Dr. Sarah Williams",
				Email:          "sarah.williams@example.com",
				Specialization: "Pediatrics",
				Institution:    "Stanford Medical School",
				GraduationYear: 2015,
				Address:        "789 Children's Way, Palo Alto, CA",
				Bio:            "Dedicated to providing exceptional care for children",
			},
		},
		{
			LicenseNumber: "MD34567890",
			Verified:      true,
			Profile: models.Profile{
				Name:           "Dr. Robert Brown",
				Email:          "robert.brown@example.com",
				Specialization: "Orthopedics",
				Institution:    "UCLA Medical Center",
				GraduationYear: 2008,
				Address:        "321 Bone & Joint Ave, Los Angeles, CA",
				Bio:            "Specializing in sports medicine and joint replacements",
			},
		},
		{
			LicenseNumber: "MD45678901",
			Verified:      true,
			Profile: models.Profile{
				Name:           "Dr. Emily Davis",
				Email:          "emily.davis@example.com",
				Specialization: "Dermatology",
				Institution:    "NYU School of Medicine",
				GraduationYear: 2011,
				Address:        "555 Skin Health St, New York, NY",
				Bio:            "Expert in treating various skin conditions and cosmetic procedures",
			},
		},
	}
}

// DemoReports returns the demo reports shown on a fresh dashboard.
func DemoReports() []DemoReport {
	return []DemoReport{
		{
			Status: models.ReportStatusPending,
			Content: models.ReportContent{
				DoctorName:    "Dr. John Doe",
				LicenseNumber: "MD98765432",
				Location:      "Chicago, IL",
				ConcernType:   models.ConcernFakeCredentials,
				Description:   "This doctor claims to have graduated from Harvard, but I couldn't find any record of this.",
				ContactEmail:  "reporter1@example.com",
			},
		},
		{
			Status: models.ReportStatusInvestigating,
			Content: models.ReportContent{
				DoctorName:    "Dr. Lisa Anderson",
				LicenseNumber: "MD56789012",
				Location:      "Miami Medical Center",
				ConcernType:   models.ConcernExpiredLicense,
				Description:   "I believe this doctor's license has expired but they are still practicing.",
				ContactEmail:  "reporter2@example.com",
			},
		},
		{
			Status: models.ReportStatusResolved,
			Content: models.ReportContent{
				DoctorName:    "Dr. Mark Wilson",
				LicenseNumber: "MD67890123",
				Location:      "Seattle, WA",
				ConcernType:   models.ConcernImpersonation,
				Description:   "I suspect this person is impersonating a real doctor. Their behavior seemed unprofessional.",
			},
		},
	}
}
