package extractors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/apimap/internal/routepath"
	"github.com/QTest-hq/apimap/pkg/model"
)

// routes renders matches as "METHOD /normalized/path" for comparison.
func routes(ms []model.RawMatch) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Method+" "+routepath.Clean(m.RawPath))
	}
	return out
}

func scan(t *testing.T, name, content, file string) []model.RawMatch {
	t.Helper()
	e, err := NewRegistry().Get(name)
	require.NoError(t, err)
	return e.Scan(content, file)
}

func TestNextJSAppRouter(t *testing.T) {
	content := `import { NextResponse } from 'next/server'

export async function GET(req: Request, { params }) {
  return NextResponse.json({ id: params.id })
}

export async function DELETE(req: Request) {
  return new Response(null, { status: 204 })
}
`
	ms := scan(t, "nextjs", content, "app/api/users/[id]/route.ts")
	assert.Equal(t, []string{"GET /api/users/{id}", "DELETE /api/users/{id}"}, routes(ms))
	for _, m := range ms {
		assert.Equal(t, model.FrameworkNextJS, m.Framework)
		assert.Equal(t, "app/api/users/[id]/route.ts", m.SourceFile)
	}
}

func TestNextJSPagesRouter(t *testing.T) {
	content := `export default function handler(req, res) {
  if (req.method === 'POST') {
    return res.status(201).json({})
  }
  if (req.method === 'GET') {
    return res.json([])
  }
}
`
	ms := scan(t, "nextjs", content, "pages/api/orders/index.ts")
	assert.Equal(t, []string{"POST /api/orders", "GET /api/orders"}, routes(ms))

	ms = scan(t, "nextjs", "export default function handler(req, res) {}\n", "pages/api/ping.ts")
	assert.Equal(t, []string{"GET /api/ping"}, routes(ms))
}

func TestNextJSIgnoresRouteGroups(t *testing.T) {
	ms := scan(t, "nextjs", "export const POST = handler\n", "src/app/(admin)/settings/route.js")
	assert.Equal(t, []string{"POST /settings"}, routes(ms))
}

func TestExpressFluentRoutes(t *testing.T) {
	content := `const express = require('express')
const app = express()
const usersRouter = express.Router()

router.post('/orders', auth, validate, createOrder)
usersRouter.get('/:id', getUser)
// app.get('/disabled', nope)
app.use('/users', usersRouter)
`
	ms := scan(t, "express", content, "src/app.js")
	assert.Equal(t, []string{"POST /orders", "GET /users/{id}"}, routes(ms))
	assert.Equal(t, model.FrameworkExpress, ms[0].Framework)
}

func TestExpressRouteChain(t *testing.T) {
	content := `router.route('/books')
  .get(listBooks)
  .post(createBook)
`
	ms := scan(t, "express", content, "routes/books.js")
	assert.Equal(t, []string{"GET /books", "POST /books"}, routes(ms))
}

func TestExpressCatchAllIsGet(t *testing.T) {
	ms := scan(t, "express", "app.all('/proxy', forward)\n", "server.js")
	assert.Equal(t, []string{"GET /proxy"}, routes(ms))
}

func TestKoaRouterPrefix(t *testing.T) {
	content := `const router = new Router({ prefix: '/api' })
router.get('/items', list)
`
	ms := scan(t, "express", content, "index.js")
	assert.Equal(t, []string{"GET /api/items"}, routes(ms))
}

func TestNestJSController(t *testing.T) {
	content := `import { Controller, Get, Post, Param, Body } from '@nestjs/common';

@Controller('cats')
export class CatsController {
  @Get(':id')
  findOne(@Param('id') id: string) {}

  @Post()
  create(@Body() dto: CreateCatDto) {}
}
`
	ms := scan(t, "nestjs", content, "src/cats.controller.ts")
	assert.Equal(t, []string{"GET /cats/{id}", "POST /cats"}, routes(ms))
}

func TestFastifyRoutes(t *testing.T) {
	content := `fastify.route({
  method: ['GET', 'HEAD'],
  url: '/items/:id',
  handler: async (req, reply) => { return {} }
})
fastify.get('/ping', async () => 'pong')
`
	ms := scan(t, "fastify", content, "server.js")
	assert.ElementsMatch(t, []string{"GET /items/{id}", "HEAD /items/{id}", "GET /ping"}, routes(ms))
}

func TestHapiRouteArray(t *testing.T) {
	content := `server.route([
  { method: 'GET', path: '/todos', handler: list },
  { method: 'POST', path: '/todos', handler: create },
]);
`
	ms := scan(t, "hapi", content, "server.js")
	assert.Equal(t, []string{"GET /todos", "POST /todos"}, routes(ms))
}

func TestFastAPIRouterPrefix(t *testing.T) {
	content := `from fastapi import APIRouter

router = APIRouter(prefix="/items")

@router.get("/{item_id}")
async def read_item(item_id: int):
    return {}

@router.api_route("/bulk", methods=["PUT", "PATCH"])
def bulk():
    pass
`
	ms := scan(t, "fastapi", content, "app/items.py")
	assert.ElementsMatch(t, []string{"GET /items/{item_id}", "PUT /items/bulk", "PATCH /items/bulk"}, routes(ms))
}

func TestFlaskBlueprint(t *testing.T) {
	content := `bp = Blueprint('users', __name__, url_prefix='/users')

@bp.route('/<int:user_id>', methods=['GET', 'PUT'])
def user(user_id):
    pass

@bp.route('/')
def index():
    pass
`
	ms := scan(t, "flask", content, "app/users.py")
	assert.Equal(t, []string{"GET /users/{user_id}", "PUT /users/{user_id}", "GET /users"}, routes(ms))
}

func TestDjangoURLPatterns(t *testing.T) {
	content := `from django.urls import path, include
from . import views

urlpatterns = [
    path('articles/<int:year>/', views.year_archive),
    path('api/', include('api.urls')),
]
`
	ms := scan(t, "django", content, "blog/urls.py")
	require.Len(t, ms, 1)
	assert.Equal(t, "GET /articles/{year}", routes(ms)[0])
	assert.Equal(t, "year_archive", ms[0].Handler)
}

func TestDjangoRESTRouter(t *testing.T) {
	content := `router = DefaultRouter()
router.register(r'users', UserViewSet)
`
	ms := scan(t, "django", content, "api/urls.py")
	assert.Equal(t, []string{
		"GET /users", "POST /users",
		"GET /users/{pk}", "PUT /users/{pk}", "PATCH /users/{pk}", "DELETE /users/{pk}",
	}, routes(ms))
}

func TestSpringClassPrefix(t *testing.T) {
	content := `@RestController
@RequestMapping("/api/v1")
public class ItemController {

    @GetMapping("/items/{id}")
    public Item get(@PathVariable Long id) {
        return service.find(id);
    }

    @RequestMapping(value = "/items", method = RequestMethod.POST)
    public Item create(@RequestBody Item item) {
        return service.save(item);
    }
}
`
	ms := scan(t, "spring", content, "src/main/java/ItemController.java")
	assert.Equal(t, []string{"GET /api/v1/items/{id}", "POST /api/v1/items"}, routes(ms))
}

func TestJAXRSResource(t *testing.T) {
	content := `@Path("/orders")
public class OrderResource {
    @GET
    @Path("/{id}")
    public Order get(@PathParam("id") String id) { return null; }

    @POST
    public Response create(Order o) { return null; }
}
`
	ms := scan(t, "jaxrs", content, "OrderResource.java")
	assert.Equal(t, []string{"GET /orders/{id}", "POST /orders"}, routes(ms))
}

func TestGinGroups(t *testing.T) {
	content := `r := gin.Default()
v1 := r.Group("/api/v1")
v1.GET("/users/:id", getUser)
r.POST("/login", login)
`
	ms := scan(t, "gin-echo", content, "main.go")
	assert.Equal(t, []string{"GET /api/v1/users/{id}", "POST /login"}, routes(ms))
	assert.Equal(t, model.FrameworkGin, ms[0].Framework)
}

func TestEchoTagging(t *testing.T) {
	content := `import "github.com/labstack/echo/v4"
e.GET("/ping", ping)
`
	ms := scan(t, "gin-echo", content, "main.go")
	require.Len(t, ms, 1)
	assert.Equal(t, model.FrameworkEcho, ms[0].Framework)
}

func TestChiRouteClosures(t *testing.T) {
	content := `r := chi.NewRouter()
r.Route("/articles", func(r chi.Router) {
	r.Get("/", listArticles)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", getArticle)
		r.Delete("/", deleteArticle)
	})
})
r.With(auth).Post("/login", login)
r.Method("PUT", "/settings", settingsHandler)
`
	ms := scan(t, "chi", content, "routes.go")
	assert.Equal(t, []string{
		"GET /articles", "GET /articles/{id}", "DELETE /articles/{id}", "POST /login", "PUT /settings",
	}, routes(ms))
}

func TestFiberGroups(t *testing.T) {
	content := `app := fiber.New()
api := app.Group("/api")
api.Get("/users", listUsers)
`
	ms := scan(t, "fiber", content, "main.go")
	assert.Equal(t, []string{"GET /api/users"}, routes(ms))
}

func TestGorillaMethods(t *testing.T) {
	content := `r := mux.NewRouter()
api := r.PathPrefix("/api").Subrouter()
api.HandleFunc("/users/{id:[0-9]+}", getUser).Methods("GET", "PUT")
r.HandleFunc("/health", health)
`
	ms := scan(t, "gorilla", content, "main.go")
	assert.Equal(t, []string{"GET /api/users/{id}", "PUT /api/users/{id}", "GET /health"}, routes(ms))
}

func TestNetHTTPPatterns(t *testing.T) {
	content := `mux := http.NewServeMux()
mux.HandleFunc("GET /items/{id}", getItem)
mux.HandleFunc("POST /items", createItem)
http.HandleFunc("/legacy", legacy)
mux.Handle("/files/{path...}", files)
`
	ms := scan(t, "nethttp", content, "main.go")
	assert.Equal(t, []string{"GET /items/{id}", "POST /items", "GET /legacy", "GET /files/{path}"}, routes(ms))
}

func TestRailsRoutes(t *testing.T) {
	content := `Rails.application.routes.draw do
  namespace :api do
    resources :users, only: [:index, :show] do
      resources :posts, only: [:index]
      member do
        post :activate
      end
    end
  end
  get '/health', to: 'health#show'
  root 'pages#home'
end
`
	ms := scan(t, "rails", content, "config/routes.rb")
	assert.Equal(t, []string{
		"GET /api/users",
		"GET /api/users/{id}",
		"GET /api/users/{user_id}/posts",
		"POST /api/users/{id}/activate",
		"GET /health",
		"GET /",
	}, routes(ms))
	assert.Equal(t, "health#show", ms[4].Handler)
}

func TestSinatraBlocks(t *testing.T) {
	content := `require 'sinatra'

get '/hello/:name' do
  "Hello #{params[:name]}"
end

post '/items' do
  status 201
end
`
	ms := scan(t, "sinatra", content, "app.rb")
	assert.Equal(t, []string{"GET /hello/{name}", "POST /items"}, routes(ms))
}

func TestLaravelRoutes(t *testing.T) {
	content := `<?php
Route::get('/users', [UserController::class, 'index']);
Route::prefix('v1')->group(function () {
    Route::post('/orders', [OrderController::class, 'store']);
});
Route::apiResource('photos', PhotoController::class);
`
	ms := scan(t, "laravel", content, "routes/api.php")
	assert.Equal(t, []string{
		"GET /api/users",
		"POST /api/v1/orders",
		"GET /api/photos",
		"POST /api/photos",
		"GET /api/photos/{photo}",
		"PUT /api/photos/{photo}",
		"PATCH /api/photos/{photo}",
		"DELETE /api/photos/{photo}",
	}, routes(ms))
}

func TestSymfonyAttributes(t *testing.T) {
	content := `<?php
#[Route('/api/products')]
class ProductController extends AbstractController
{
    #[Route('/{id}', name: 'product_show', methods: ['GET'])]
    public function show(int $id): Response {}

    #[Route('', name: 'product_create', methods: ['POST'])]
    public function create(): Response {}
}
`
	ms := scan(t, "symfony", content, "src/Controller/ProductController.php")
	assert.Equal(t, []string{"GET /api/products/{id}", "POST /api/products"}, routes(ms))
}

func TestASPNetControllers(t *testing.T) {
	content := `[ApiController]
[Route("api/[controller]")]
public class UsersController : ControllerBase
{
    [HttpGet]
    public IActionResult GetAll() => Ok();

    [HttpGet("{id:int}")]
    public IActionResult Get(int id) => Ok();

    [HttpPost]
    [Route("~/admin/users")]
    public IActionResult Create() => Ok();
}
`
	ms := scan(t, "aspnet", content, "Controllers/UsersController.cs")
	assert.Equal(t, []string{"GET /api/Users", "GET /api/Users/{id}", "POST /admin/users"}, routes(ms))
}

func TestASPNetMinimalAPIs(t *testing.T) {
	content := `var app = builder.Build();
var todos = app.MapGroup("/todos");
todos.MapGet("/{id}", GetTodo);
app.MapPost("/login", Login);
`
	ms := scan(t, "aspnet", content, "Program.cs")
	assert.Equal(t, []string{"GET /todos/{id}", "POST /login"}, routes(ms))
}

func TestRustAttributeMacros(t *testing.T) {
	content := `#[get("/users/{id}")]
async fn get_user() -> impl Responder { HttpResponse::Ok() }

#[post("/users")]
async fn create_user() -> impl Responder { HttpResponse::Created() }
`
	ms := scan(t, "rust-attribute", content, "src/main.rs")
	assert.Equal(t, []string{"GET /users/{id}", "POST /users"}, routes(ms))
	assert.Equal(t, model.FrameworkActix, ms[0].Framework)

	rocket := `#[macro_use] extern crate rocket;
#[get("/files/<path..>")]
fn files(path: PathBuf) {}
`
	ms = scan(t, "rust-attribute", rocket, "src/main.rs")
	assert.Equal(t, []string{"GET /files/{path}"}, routes(ms))
	assert.Equal(t, model.FrameworkRocket, ms[0].Framework)
}

func TestAxumMethodRouters(t *testing.T) {
	content := `use axum::{routing::get, Router};

let app = Router::new()
    .route("/users", get(list_users).post(create_user))
    .route("/users/:id", get(show_user).delete(delete_user));
`
	ms := scan(t, "axum", content, "src/main.rs")
	assert.Equal(t, []string{"GET /users", "POST /users", "GET /users/{id}", "DELETE /users/{id}"}, routes(ms))
}

func TestPhoenixScopes(t *testing.T) {
	content := `defmodule MyAppWeb.Router do
  use MyAppWeb, :router

  scope "/api", MyAppWeb do
    pipe_through :api
    get "/status", StatusController, :show
    resources "/users", UserController, only: [:index, :show]
  end
end
`
	ms := scan(t, "phoenix", content, "lib/my_app_web/router.ex")
	assert.Equal(t, []string{"GET /api/status", "GET /api/users", "GET /api/users/{id}"}, routes(ms))
	assert.Equal(t, "StatusController.show", ms[0].Handler)
}

func TestShelfRouter(t *testing.T) {
	content := `import 'package:shelf_router/shelf_router.dart';

final router = Router()
  ..get('/users/<id>', getUser)
  ..post('/users', createUser);
`
	ms := scan(t, "shelf", content, "bin/server.dart")
	assert.Equal(t, []string{"GET /users/{id}", "POST /users"}, routes(ms))
}

func TestRouteTable(t *testing.T) {
	content := `const routes = [
  { method: 'GET', path: '/health' },
  { path: '/items', method: 'post' },
];
`
	ms := scan(t, "route-table", content, "routes.js")
	assert.Equal(t, []string{"GET /health", "POST /items"}, routes(ms))
	assert.Equal(t, model.FrameworkUnknown, ms[0].Framework)
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	assert.Error(t, err)

	e, err := r.Get("spring")
	require.NoError(t, err)
	assert.Equal(t, []model.Framework{model.FrameworkSpring}, e.Frameworks())
}

func TestForFramework(t *testing.T) {
	r := NewRegistry()

	names := func(set []Extractor) []string {
		var out []string
		for _, e := range set {
			out = append(out, e.Name())
		}
		return out
	}

	gin := r.ForFramework(model.FrameworkGin)
	assert.Equal(t, []string{"gin-echo", "route-table"}, names(gin))
	assert.Equal(t, []string{".go"}, Extensions(gin))

	assert.Len(t, r.ForFramework(model.FrameworkUnknown), len(r.All()))
	assert.Len(t, r.ForFramework(""), len(r.All()))
}

type fixedExtractor struct {
	name    string
	matches []model.RawMatch
	panics  bool
}

func (f *fixedExtractor) Name() string                  { return f.name }
func (f *fixedExtractor) Frameworks() []model.Framework { return nil }
func (f *fixedExtractor) Extensions() []string          { return nil }
func (f *fixedExtractor) Scan(content, path string) []model.RawMatch {
	if f.panics {
		panic("boom")
	}
	return f.matches
}

func TestRunRecoversFromPanics(t *testing.T) {
	set := []Extractor{&fixedExtractor{name: "broken", panics: true}, NewExpressExtractor()}
	ms := Run(set, "app.get('/ok', h)\n", "index.js")
	assert.Equal(t, []string{"GET /ok"}, routes(ms))
}

func TestRunOrdersByOffsetThenRegistration(t *testing.T) {
	first := &fixedExtractor{name: "first", matches: []model.RawMatch{
		{Method: "GET", RawPath: "/b", Offset: 20, Extractor: "first"},
		{Method: "GET", RawPath: "/a", Offset: 10, Extractor: "first"},
	}}
	second := &fixedExtractor{name: "second", matches: []model.RawMatch{
		{Method: "GET", RawPath: "/a", Offset: 10, Extractor: "second"},
		{Method: "GET", RawPath: "/0", Offset: 0, Extractor: "second"},
	}}
	ms := Run([]Extractor{first, second}, "", "x.js")
	require.Len(t, ms, 4)
	assert.Equal(t, "/0", ms[0].RawPath)
	assert.Equal(t, "first", ms[1].Extractor)
	assert.Equal(t, "second", ms[2].Extractor)
	assert.Equal(t, "/b", ms[3].RawPath)
}

func TestRunSkipsForeignExtensions(t *testing.T) {
	ms := Run([]Extractor{NewExpressExtractor()}, "app.get('/ok', h)\n", "main.py")
	assert.Empty(t, ms)
}

func TestMethodList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`['GET', 'POST']`, []string{"GET", "POST"}},
		{`{RequestMethod.GET, RequestMethod.DELETE}`, []string{"GET", "DELETE"}},
		{`"patch"`, []string{"PATCH"}},
		{`[http.MethodPut]`, []string{"PUT"}},
		{`['FETCH']`, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, methodList(tt.in), tt.in)
	}
}
