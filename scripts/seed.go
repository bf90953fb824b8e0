package main

import (
	"context"
	"errors"
	"log"
	"time"

	"courseportal/apperrors"
	"courseportal/config"
	"courseportal/database"
	"courseportal/models"
	"courseportal/models/course"
	"courseportal/services/courses"
	"courseportal/services/users"
	"courseportal/utils"

	"gorm.io/gorm"
)

const seedPassword = "password123"

var seedUsers = []users.NewUser{
	{Email: "manager1@example.com", Role: models.RoleManager, FirstName: "Alice", LastName: "Johnson"},
	{Email: "manager2@example.com", Role: models.RoleManager, FirstName: "Bob", LastName: "Williams"},
	{Email: "instructor1@example.com", Role: models.RoleInstructor, FirstName: "Carol", LastName: "Davis"},
	{Email: "instructor2@example.com", Role: models.RoleInstructor, FirstName: "David", LastName: "Miller"},
	{Email: "instructor3@example.com", Role: models.RoleInstructor, FirstName: "Emma", LastName: "Wilson"},
	{Email: "student1@example.com", Role: models.RoleStudent, FirstName: "Frank", LastName: "Brown"},
	{Email: "student2@example.com", Role: models.RoleStudent, FirstName: "Grace", LastName: "Taylor"},
	{Email: "student3@example.com", Role: models.RoleStudent, FirstName: "Henry", LastName: "Anderson"},
	{Email: "student4@example.com", Role: models.RoleStudent, FirstName: "Ivy", LastName: "Thomas"},
	{Email: "student5@example.com", Role: models.RoleStudent, FirstName: "Jack", LastName: "Martinez"},
}

type seedCourse struct {
	author string
	input  courses.CreateInput
}

func date(s string) time.Time {
	t, err := utils.ParseDate(s)
	if err != nil {
		log.Fatalf("bad seed date %q: %v", s, err)
	}
	return t
}

var seedCourses = []seedCourse{
	{"instructor1@example.com", courses.CreateInput{
		Title:      "Introduction to Web Development",
		Summary:    "Learn the fundamentals of web development including HTML, CSS, and JavaScript",
		Content:    "<p>HTML5, CSS3, modern JavaScript and responsive design, built around real projects.</p>",
		StartDate:  date("2026-03-01"),
		EndDate:    date("2026-05-15"),
		Capacity:   30,
		Visibility: course.VisibilityPublic,
	}},
	{"instructor2@example.com", courses.CreateInput{
		Title:      "Advanced TypeScript",
		Summary:    "Deep dive into TypeScript features",
		Content:    "<p>Generics, decorators, advanced types and compiler configuration.</p>",
		StartDate:  date("2026-03-15"),
		EndDate:    date("2026-06-01"),
		Capacity:   25,
		Visibility: course.VisibilityPublic,
	}},
	{"instructor3@example.com", courses.CreateInput{
		Title:      "Database Design and SQL",
		Summary:    "Learn relational database design and SQL querying",
		Content:    "<p>Normalization, ER diagrams, SQL queries, transactions and indexing.</p>",
		StartDate:  date("2026-04-01"),
		EndDate:    date("2026-06-30"),
		Capacity:   2,
		Visibility: course.VisibilityPublic,
	}},
	{"instructor1@example.com", courses.CreateInput{
		Title:      "Internal Engineering Onboarding",
		Summary:    "Private onboarding track for new staff",
		Content:    "<p>Tooling, code review and release process.</p>",
		StartDate:  date("2026-02-01"),
		EndDate:    date("2026-02-28"),
		Capacity:   10,
		Visibility: course.VisibilityPrivate,
	}},
}

func main() {
	// Load config and connect to database
	config.LoadConfig()
	database.ConnectDb()
	db := database.Database.Db
	defer database.Close(db)

	ctx := context.Background()
	userStore := users.NewStore(db, users.DefaultPolicy)
	courseStore := courses.NewStore(db, utils.NewContentSanitizer())

	ids := make(map[string]string, len(seedUsers))
	created := 0
	for _, u := range seedUsers {
		existing, err := userStore.FindByEmail(ctx, u.Email)
		if err == nil {
			ids[u.Email] = existing.ID
			continue
		}
		if !apperrors.IsNotFound(err) {
			log.Fatalf("Failed to look up %s: %v", u.Email, err)
		}
		u.Password = seedPassword
		user, err := userStore.Create(ctx, u)
		if err != nil {
			log.Fatalf("Failed to create %s: %v", u.Email, err)
		}
		ids[u.Email] = user.ID
		created++
	}
	log.Printf("Users: %d created, %d already present", created, len(seedUsers)-created)

	created = 0
	for _, sc := range seedCourses {
		var existing course.Course
		err := db.WithContext(ctx).Where("title = ?", sc.input.Title).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatalf("Failed to look up course %q: %v", sc.input.Title, err)
		}
		if _, err := courseStore.Create(ctx, sc.input, ids[sc.author]); err != nil {
			log.Fatalf("Failed to create course %q: %v", sc.input.Title, err)
		}
		created++
	}
	log.Printf("Courses: %d created, %d already present", created, len(seedCourses)-created)
	log.Printf("Seed complete. Every account uses the password %q", seedPassword)
}
